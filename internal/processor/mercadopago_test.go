package processor

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signMercadoPago(secret, id, requestID, ts string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(MercadoPagoManifest(id, requestID, ts)))
	return "ts=" + ts + ",v1=" + hex.EncodeToString(mac.Sum(nil))
}

func TestMercadoPagoManifest(t *testing.T) {
	assert.Equal(t, "id:abc123;request-id:req-1;ts:1700000000;", MercadoPagoManifest("ABC123", "req-1", "1700000000"))
	assert.Equal(t, "id:42;ts:1700000000;", MercadoPagoManifest("42", "", "1700000000"))
}

func TestMercadoPago_ParseNotification(t *testing.T) {
	mp := &MercadoPago{}

	tests := []struct {
		name    string
		n       Notification
		want    string
		wantErr error
	}{
		{
			name: "json body with numeric id",
			n:    Notification{Body: []byte(`{"type":"payment","action":"payment.updated","data":{"id":123456}}`)},
			want: "123456",
		},
		{
			name: "json body with string id",
			n:    Notification{Body: []byte(`{"type":"payment","data":{"id":"987"}}`)},
			want: "987",
		},
		{
			name: "legacy query format",
			n:    Notification{Query: url.Values{"topic": {"payment"}, "id": {"555"}}},
			want: "555",
		},
		{
			name:    "merchant order is ignored",
			n:       Notification{Query: url.Values{"topic": {"merchant_order"}, "id": {"1"}}},
			wantErr: ErrEventIgnored,
		},
		{
			name:    "missing id",
			n:       Notification{Body: []byte(`{"type":"payment","data":{}}`)},
			wantErr: ErrInvalidNotification,
		},
		{
			name:    "broken json",
			n:       Notification{Body: []byte(`{"type":`)},
			wantErr: ErrInvalidNotification,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := mp.ParseNotification(tt.n)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMercadoPago_ParseNotificationSignature(t *testing.T) {
	const secret = "whsec-test"
	mp := &MercadoPago{webhookSecret: secret}
	body := []byte(`{"type":"payment","data":{"id":"777"}}`)

	valid := http.Header{}
	valid.Set("x-request-id", "req-42")
	valid.Set("x-signature", signMercadoPago(secret, "777", "req-42", "1700000000"))

	id, err := mp.ParseNotification(Notification{Body: body, Header: valid})
	require.NoError(t, err)
	assert.Equal(t, "777", id)

	tampered := http.Header{}
	tampered.Set("x-request-id", "req-42")
	tampered.Set("x-signature", signMercadoPago("other-secret", "777", "req-42", "1700000000"))
	_, err = mp.ParseNotification(Notification{Body: body, Header: tampered})
	assert.ErrorIs(t, err, ErrInvalidSignature)

	_, err = mp.ParseNotification(Notification{Body: body, Header: http.Header{}})
	assert.ErrorIs(t, err, ErrInvalidSignature)

	malformed := http.Header{}
	malformed.Set("x-signature", "v1=deadbeef")
	_, err = mp.ParseNotification(Notification{Body: body, Header: malformed})
	assert.ErrorIs(t, err, ErrInvalidSignature)
}

func TestNewMercadoPagoRequiresToken(t *testing.T) {
	_, err := NewMercadoPago(MercadoPagoConfig{})
	assert.Error(t, err)
}
