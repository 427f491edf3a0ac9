package utils

import (
	"crypto/rand"
	"math/big"
	"time"
)

const (
	OTPLength = 6
	OTPExpiry = 10 * time.Minute
)

// GenerateOTP returns a random numeric reset code.
func GenerateOTP() (string, error) {
	const digits = "0123456789"
	otp := make([]byte, OTPLength)

	for i := range otp {
		num, err := rand.Int(rand.Reader, big.NewInt(int64(len(digits))))
		if err != nil {
			return "", err
		}
		otp[i] = digits[num.Int64()]
	}

	return string(otp), nil
}
