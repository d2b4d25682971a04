package codec

import (
	"fmt"
	"net/url"

	qrcode "github.com/skip2/go-qrcode"
)

const badgeSizePx = 256

// BadgeConfig configures the decorative verification badge.
type BadgeConfig struct {
	// Enabled toggles badge decoration at issuance.
	Enabled bool `mapstructure:"Enabled"`
	// VerificationURL is the page the badge QR points to. The record id is
	// appended as a query parameter.
	VerificationURL string `mapstructure:"VerificationURL"`
}

// BadgePNG renders the scannable verification badge for one record id.
func BadgePNG(cfg BadgeConfig, recordID string) ([]byte, error) {
	target, err := url.Parse(cfg.VerificationURL)
	if err != nil {
		return nil, fmt.Errorf("codec: bad verification URL: %w", err)
	}
	q := target.Query()
	q.Set("record", recordID)
	target.RawQuery = q.Encode()
	return qrcode.Encode(target.String(), qrcode.Medium, badgeSizePx)
}
