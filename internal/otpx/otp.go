// Package otpx wraps pquerna/otp for RFC 6238 enrolment and verification.
package otpx

import (
	"bytes"
	"fmt"
	"image/png"
	"strings"
	"time"

	"github.com/dmitrijs2005/securevault/internal/common"
	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

const (
	Period  = 30
	Skew    = 1
	qrWidth = 256
)

var validateOpts = totp.ValidateOpts{
	Period:    Period,
	Skew:      Skew,
	Digits:    otp.DigitsSix,
	Algorithm: otp.AlgorithmSHA1,
}

// Enrolment is a freshly generated shared secret.
type Enrolment struct {
	Secret string
	URI    string
	QRPNG  []byte
}

// Enrol generates a secret for account under issuer.
func Enrol(issuer, account string) (*Enrolment, error) {
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      issuer,
		AccountName: account,
		Period:      Period,
		Digits:      otp.DigitsSix,
		Algorithm:   otp.AlgorithmSHA1,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: totp generate: %v", common.ErrorInternal, err)
	}

	img, err := key.Image(qrWidth, qrWidth)
	if err != nil {
		return nil, fmt.Errorf("%w: totp qr: %v", common.ErrorInternal, err)
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("%w: totp qr: %v", common.ErrorInternal, err)
	}

	return &Enrolment{Secret: key.Secret(), URI: key.URL(), QRPNG: buf.Bytes()}, nil
}

// Verify checks a 6 digit code allowing one step of clock drift either way.
func Verify(secret, code string, now time.Time) bool {
	code = strings.TrimSpace(code)
	if secret == "" || len(code) != 6 {
		return false
	}
	ok, err := totp.ValidateCustom(code, secret, now, validateOpts)
	return err == nil && ok
}

// Code returns the code for secret at t.
func Code(secret string, t time.Time) (string, error) {
	return totp.GenerateCodeCustom(secret, t, validateOpts)
}
