// Package archive stores large ping bodies in object storage, addressed by
// (check code, ping sequence number).
package archive

import "strconv"

const (
	asciiJ = 'j'
	asciiZ = 'z'
)

// Encode generates an object key in the "<sorting prefix>-<n>" form:
//
//	Encode(0) == "zj-0", Encode(1) == "zi-1", Encode(2) == "zh-2", ...
//
// Each decimal digit d maps to 'j'-d, and a length-complement character is
// prefixed so shorter numbers sort after longer ones. Lexicographic order of
// the keys is therefore the exact reverse of numeric order of n, which lets
// a single ListObjects call with start_after=Encode(threshold+1) retrieve
// the keys for all n <= threshold. The format is stable; changing it would
// orphan already-archived objects.
func Encode(n int) string {
	s := strconv.Itoa(n)
	b := make([]byte, 0, 2*len(s)+2)
	b = append(b, byte(asciiZ-len(s)+1))
	for i := 0; i < len(s); i++ {
		b = append(b, byte(asciiJ-(s[i]-'0')))
	}
	b = append(b, '-')
	b = append(b, s...)
	return string(b)
}

// ObjectKey returns the archive key for a check's nth ping body.
func ObjectKey(code string, n int) string {
	return code + "/" + Encode(n)
}
