package payment

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTransferContent(t *testing.T) {
	require.Equal(t, "DHa1b2c3", TransferContent("5f1e0c1a-77aa-4c1b-9c1e-0e9d7ba1b2c3"))
	require.Equal(t, "DH4567", TransferContent("4567"))
	require.Equal(t, "DH", TransferContent(""))
}

func TestQRURLIsVerbatim(t *testing.T) {
	got := QRURL("0123456789", "970422", 300000, "DHa1b2c3")
	require.Equal(t, "https://qr.sepay.vn/img?acc=0123456789&bank=970422&amount=300000&des=DHa1b2c3", got)
}

func TestInstructionsFor(t *testing.T) {
	in := Instructions{AccountNumber: "0123456789", BankBin: "970422", AccountName: "KHACH SAN"}
	info := in.For("order-00ffee", 500000)
	require.Equal(t, Info{
		AccountNumber: "0123456789",
		BankBin:       "970422",
		AccountName:   "KHACH SAN",
		Amount:        500000,
		Content:       "DH00ffee",
		QRURL:         "https://qr.sepay.vn/img?acc=0123456789&bank=970422&amount=500000&des=DH00ffee",
	}, info)

	b, err := json.Marshal(info)
	require.NoError(t, err)
	require.JSONEq(t, `{"accountNumber":"0123456789","bankBin":"970422","accountName":"KHACH SAN",
		"amount":500000,"content":"DH00ffee",
		"qrUrl":"https://qr.sepay.vn/img?acc=0123456789&bank=970422&amount=500000&des=DH00ffee"}`, string(b))
}

func TestExtractReferences(t *testing.T) {
	require.Equal(t, []string{"DHA1B2C3"}, ExtractReferences("MBVCB.3278.DHa1b2c3.CT tu 0123 toi 4567"))
	require.Equal(t, []string{"DHA1B2C3"}, ExtractReferences("chuyen tien DH A1B2C3"))
	require.Equal(t, []string{"DHA1B2C3", "DH000111"}, ExtractReferences("DH-a1b2c3 DHA1B2C3 dh000111"))
	require.Empty(t, ExtractReferences("thanh toan tien phong"))
	require.Empty(t, ExtractReferences(""))
}

func TestWebhookPayloadDecoding(t *testing.T) {
	var p WebhookPayload
	err := json.Unmarshal([]byte(`{
		"id": 92704,
		"gateway": "MBBank",
		"transactionDate": "2025-05-01 10:00:00",
		"accountNumber": "0123456789",
		"subAccount": null,
		"code": null,
		"content": "DHa1b2c3 thanh toan",
		"transferType": "in",
		"description": "BankAPINotify DHa1b2c3",
		"transferAmount": 300000,
		"referenceCode": "FT25121000001"
	}`), &p)
	require.NoError(t, err)
	require.Equal(t, "92704", p.TransactionRef())
	require.EqualValues(t, 300000, p.TransferAmount)
	require.False(t, p.Outgoing())
	require.Nil(t, p.Code)
	require.Equal(t, "DHa1b2c3 thanh toan BankAPINotify DHa1b2c3", p.SearchText())

	var s WebhookPayload
	require.NoError(t, json.Unmarshal([]byte(`{"id":"tx-1","content":"x","transferAmount":"150000","transferType":"out"}`), &s))
	require.Equal(t, "tx-1", s.TransactionRef())
	require.EqualValues(t, 150000, s.TransferAmount)
	require.True(t, s.Outgoing())

	var empty WebhookPayload
	require.NoError(t, json.Unmarshal([]byte(`{}`), &empty))
	require.Empty(t, empty.TransactionRef())
	require.Zero(t, empty.TransferAmount)
}

func TestWebhookPayloadRejectsBadAmount(t *testing.T) {
	var p WebhookPayload
	require.Error(t, json.Unmarshal([]byte(`{"content":"DH123456","transferAmount":"abc"}`), &p))
}
