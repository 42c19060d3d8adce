// Package payment builds SePay bank-transfer instructions and parses the
// notifications SePay posts when money arrives.
package payment

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// ReferencePrefix starts every transfer reference.
const ReferencePrefix = "DH"

// referenceSuffixLen is how many trailing id characters a reference keeps.
const referenceSuffixLen = 6

// qrTemplate is SePay's QR image endpoint.  Values are inserted verbatim;
// SePay's scanner expects them unescaped.
const qrTemplate = "https://qr.sepay.vn/img?acc=%s&bank=%s&amount=%d&des=%s"

// Info is what a customer needs to pay an order by bank transfer.
type Info struct {
	AccountNumber string `json:"accountNumber"`
	BankBin       string `json:"bankBin"`
	AccountName   string `json:"accountName"`
	Amount        int64  `json:"amount"`
	Content       string `json:"content"`
	QRURL         string `json:"qrUrl"`
}

// Instructions holds the receiving bank account.
type Instructions struct {
	AccountNumber string
	BankBin       string
	AccountName   string
}

// For returns the payment instructions of an order.  The output depends
// only on the account, the order id and the amount, so it can be rebuilt
// at any time from the stored order.
func (in Instructions) For(orderID string, amount int64) Info {
	content := TransferContent(orderID)
	return Info{
		AccountNumber: in.AccountNumber,
		BankBin:       in.BankBin,
		AccountName:   in.AccountName,
		Amount:        amount,
		Content:       content,
		QRURL:         QRURL(in.AccountNumber, in.BankBin, amount, content),
	}
}

// TransferContent derives the transfer reference from an order id:
// "DH" followed by the id's last six characters.
func TransferContent(orderID string) string {
	r := []rune(orderID)
	if len(r) > referenceSuffixLen {
		r = r[len(r)-referenceSuffixLen:]
	}
	return ReferencePrefix + string(r)
}

// QRURL renders the SePay QR image link.
func QRURL(account, bank string, amount int64, description string) string {
	return fmt.Sprintf(qrTemplate, account, bank, amount, description)
}

// referencePattern finds references in a free-text bank description.
// Banks may upper-case the text or insert a space or dash after the prefix.
var referencePattern = regexp.MustCompile(`(?i)DH[ \-]?([0-9A-Z]{6})`)

// ExtractReferences returns the distinct references found in content,
// normalized to upper case without separators, in order of appearance.
func ExtractReferences(content string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, m := range referencePattern.FindAllStringSubmatch(content, -1) {
		ref := ReferencePrefix + strings.ToUpper(m[1])
		if !seen[ref] {
			seen[ref] = true
			out = append(out, ref)
		}
	}
	return out
}

// TransactionID is SePay's transaction id.  SePay sends a number but
// string ids are accepted too.
type TransactionID string

// UnmarshalJSON accepts a JSON number, a JSON string or null.
func (t *TransactionID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*t = ""
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*t = TransactionID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*t = TransactionID(n.String())
	return nil
}

// Amount is a transfer amount that tolerates numbers sent as strings.
type Amount int64

// UnmarshalJSON accepts a JSON number, a numeric string or null.
func (a *Amount) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*a = 0
		return nil
	}
	s := strings.Trim(string(b), `"`)
	if s == "" {
		*a = 0
		return nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("invalid amount %q", s)
	}
	*a = Amount(int64(f))
	return nil
}

// WebhookPayload is the body SePay posts for each bank transaction.
type WebhookPayload struct {
	ID              TransactionID `json:"id"`
	Gateway         string        `json:"gateway"`
	TransactionDate string        `json:"transactionDate"`
	AccountNumber   string        `json:"accountNumber"`
	SubAccount      *string       `json:"subAccount"`
	Code            *string       `json:"code"`
	Content         string        `json:"content"`
	TransferType    string        `json:"transferType"`
	Description     string        `json:"description"`
	TransferAmount  Amount        `json:"transferAmount"`
	ReferenceCode   string        `json:"referenceCode"`
}

// TransactionRef returns the provider transaction id as a string.
func (p WebhookPayload) TransactionRef() string { return string(p.ID) }

// Outgoing reports whether the notification is for money leaving the account.
func (p WebhookPayload) Outgoing() bool { return strings.EqualFold(p.TransferType, "out") }

// SearchText is the text scanned for references: the transfer content,
// plus the description and the provider's detected code when present.
func (p WebhookPayload) SearchText() string {
	parts := []string{p.Content}
	if p.Description != "" {
		parts = append(parts, p.Description)
	}
	if p.Code != nil && *p.Code != "" {
		parts = append(parts, *p.Code)
	}
	return strings.Join(parts, " ")
}
