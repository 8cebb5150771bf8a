package utils

import (
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateReferralCodeFormat(t *testing.T) {
	pattern := regexp.MustCompile(`^FC-[A-Z0-9]{6}$`)
	for i := 0; i < 50; i++ {
		code, err := GenerateReferralCode()
		require.NoError(t, err)
		assert.Regexp(t, pattern, code)
	}
}

func TestGenerateReferralCodeVaries(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		code, err := GenerateReferralCode()
		require.NoError(t, err)
		seen[code] = true
	}
	// 50 draws from a 32^6 space should essentially never collide.
	assert.Greater(t, len(seen), 45)
}

func TestReferralLinkCarriesCode(t *testing.T) {
	link := ReferralLink("FC-ABC123")
	assert.True(t, strings.HasSuffix(link, "/join?code=FC-ABC123"), link)
}

func TestGenerateReferralQRCodeReturnsDataURI(t *testing.T) {
	qr, err := GenerateReferralQRCode("FC-ABC123")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(qr, "data:image/png;base64,"))
	assert.Greater(t, len(qr), 100)
}
