//go:build go1.18

package minisign

import "testing"

func FuzzParsePublicKey(f *testing.F) {
	pub, _, err := GenerateKey()
	if err != nil {
		f.Fatal(err)
	}
	f.Add(pub.String())
	f.Add("RWTs/v2+ntUcvpgj3hhtLesiIv6ny153HNmYsGvzrkVbCCy8lHHKo5Mv")
	f.Add("")
	f.Add("not base64")

	f.Fuzz(func(t *testing.T, encoded string) {
		// Must never panic; errors are fine.
		_, _ = ParsePublicKey(encoded)
	})
}

func FuzzParseSignature(f *testing.F) {
	_, priv, err := GenerateKey()
	if err != nil {
		f.Fatal(err)
	}
	f.Add(priv.Sign([]byte("seed"), "seed"))
	f.Add("untrusted comment: x\nAAAA\n")
	f.Add("\n\n\n")

	f.Fuzz(func(t *testing.T, block string) {
		_, _ = ParseSignature(block)
	})
}
