package decoding

// Charset maps a one-hot class index to its symbol. The mapping is
// injective over the valid range; indices outside it decode to
// UnknownSymbol instead of failing.
type Charset string

const UnknownSymbol = '?'

const (
	// Lowercase covers the plain a-z captcha alphabet.
	Lowercase Charset = "abcdefghijklmnopqrstuvwxyz"
	// Alphanumeric covers captchas mixing a leading blank with digits
	// and letters of both cases.
	Alphanumeric Charset = " 0123456789abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"
)

// Symbol returns the rune for index, or UnknownSymbol when the index falls
// outside the charset.
func (c Charset) Symbol(index int) rune {
	if index < 0 || index >= len(c) {
		return UnknownSymbol
	}
	return rune(c[index])
}

// Size is the number of distinct symbols the charset can decode.
func (c Charset) Size() int { return len(c) }
