package utils

import (
	"bytes"
	"crypto/rand"
	"encoding/base32"
	"encoding/base64"
	"fmt"
	"image/png"
	"os"
	"strings"

	"github.com/boombuler/barcode"
	"github.com/boombuler/barcode/qr"
)

// ReferralCodePrefix tags every member referral code.
const ReferralCodePrefix = "FC"

// GenerateReferralCode generates a unique referral code for a member.
// Format: FC-{RANDOM} where RANDOM is 6 alphanumeric characters.
// Example: FC-ABC123
func GenerateReferralCode() (string, error) {
	// Generate 4 random bytes (will give us 6 characters in base32)
	randomBytes := make([]byte, 4)
	_, err := rand.Read(randomBytes)
	if err != nil {
		return "", err
	}

	// Convert to base32 and take first 6 characters
	randomStr := base32.StdEncoding.WithPadding(base32.NoPadding).EncodeToString(randomBytes)
	randomStr = randomStr[:6]

	// Convert to uppercase and remove any non-alphanumeric characters
	randomStr = strings.ToUpper(randomStr)
	randomStr = strings.Map(func(r rune) rune {
		if (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			return r
		}
		return -1
	}, randomStr)

	// Ensure we have exactly 6 characters
	if len(randomStr) < 6 {
		randomStr = randomStr + strings.Repeat("0", 6-len(randomStr))
	}

	return ReferralCodePrefix + "-" + randomStr, nil
}

// ReferralLink builds the shareable signup link for a referral code.
func ReferralLink(referralCode string) string {
	baseURL := os.Getenv("APP_BASE_URL")
	if baseURL == "" {
		baseURL = "https://fadeclub.com"
	}
	return fmt.Sprintf("%s/join?code=%s", baseURL, referralCode)
}

// GenerateReferralQRCode creates a QR code image for a referral code and
// returns it as a base64 data URI for embedding in responses.
func GenerateReferralQRCode(referralCode string) (string, error) {
	content := ReferralLink(referralCode)

	qrCode, err := qr.Encode(content, qr.M, qr.Auto)
	if err != nil {
		return "", err
	}

	// Scale the QR code to a reasonable size (300x300 pixels)
	qrCode, err = barcode.Scale(qrCode, 300, 300)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	err = png.Encode(&buf, qrCode)
	if err != nil {
		return "", err
	}

	base64QR := base64.StdEncoding.EncodeToString(buf.Bytes())
	return "data:image/png;base64," + base64QR, nil
}
