package dat2img

import (
	"bytes"
	"crypto/aes"
	"os"
	"path/filepath"
	"strings"
)

// AesKeyValidator checks a candidate operator key against a sampled V2
// container from the media tree.
type AesKeyValidator struct {
	Path          string
	EncryptedData []byte
}

// NewImgKeyValidator samples the first AES block of a V2 container found
// under path. Thumbnail variants are skipped; they may be V0.
func NewImgKeyValidator(path string) *AesKeyValidator {
	validator := &AesKeyValidator{
		Path: path,
	}

	filepath.Walk(path, func(filePath string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		if !strings.HasSuffix(info.Name(), ".dat") || strings.HasSuffix(info.Name(), "_t.dat") {
			return nil
		}

		data, err := os.ReadFile(filePath)
		if err != nil {
			return nil
		}

		if len(data) >= headerSize+aes.BlockSize && bytes.Equal(data[:6], V2Signature) {
			validator.EncryptedData = make([]byte, aes.BlockSize)
			copy(validator.EncryptedData, data[headerSize:headerSize+aes.BlockSize])
			return filepath.SkipAll
		}

		return nil
	})

	if len(validator.EncryptedData) == 0 {
		return nil
	}

	return validator
}

func (v *AesKeyValidator) Validate(key []byte) bool {
	if len(v.EncryptedData) == 0 {
		return false
	}
	if len(key) < aes.BlockSize {
		return false
	}
	aesKey := key[:aes.BlockSize]

	cipher, err := aes.NewCipher(aesKey)
	if err != nil {
		return false
	}

	decrypted := make([]byte, len(v.EncryptedData))
	cipher.Decrypt(decrypted, v.EncryptedData)

	return bytes.HasPrefix(decrypted, JPG.Header) || bytes.HasPrefix(decrypted, WXGF.Header)
}

// ScanXorKey infers the single-byte XOR key from a V1/V2 thumbnail container.
// JPEG payloads end with FF D9; the xor tail exposes the key as a constant
// difference.
func ScanXorKey(path string) (byte, bool) {
	var key byte
	found := false
	filepath.Walk(path, func(filePath string, info os.FileInfo, err error) error {
		if err != nil || info.IsDir() {
			return nil
		}
		if !strings.HasSuffix(info.Name(), "_t.dat") {
			return nil
		}
		data, err := os.ReadFile(filePath)
		if err != nil || len(data) < headerSize+2 {
			return nil
		}
		if Version(data) == VersionV0 {
			return nil
		}
		if data[len(data)-1]^0xD9 == data[len(data)-2]^0xFF {
			key = data[len(data)-1] ^ 0xD9
			found = true
			return filepath.SkipAll
		}
		return nil
	})
	return key, found
}
