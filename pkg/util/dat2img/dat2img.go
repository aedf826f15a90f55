package dat2img

import (
	"bytes"
	"crypto/aes"
	"encoding/binary"
	"errors"
	"fmt"
)

// Container versions, detected by the 6-byte signature at offset 0.
// V0 containers have no signature and are a whole-file single-byte XOR.
// V1/V2 containers carry a 15-byte header describing an AES-encrypted region
// followed by a raw region and a XOR-encrypted tail.
const (
	VersionV0 = 0
	VersionV1 = 1
	VersionV2 = 2
)

const (
	headerSize    = 15
	aesSizeOffset = 6
	xorSizeOffset = 10
)

type Format struct {
	Header []byte
	Ext    string
}

var (
	JPG     = Format{Header: []byte{0xFF, 0xD8, 0xFF}, Ext: "jpg"}
	PNG     = Format{Header: []byte{0x89, 0x50, 0x4E, 0x47}, Ext: "png"}
	GIF     = Format{Header: []byte{0x47, 0x49, 0x46, 0x38}, Ext: "gif"}
	WEBP    = Format{Header: []byte{0x52, 0x49, 0x46, 0x46}, Ext: "webp"}
	TIFF    = Format{Header: []byte{0x49, 0x49, 0x2A, 0x00}, Ext: "tiff"}
	BMP     = Format{Header: []byte{0x42, 0x4D}, Ext: "bmp"}
	WXGF    = Format{Header: []byte{0x77, 0x78, 0x67, 0x66}, Ext: "wxgf"}
	Formats = []Format{JPG, PNG, GIF, WEBP, TIFF, BMP}
)

var (
	V1Signature = []byte{0x07, 0x08, 0x56, 0x31, 0x08, 0x07}
	V2Signature = []byte{0x07, 0x08, 0x56, 0x32, 0x08, 0x07}
)

var (
	// DefaultAesKey decrypts the AES region of V1 containers.
	DefaultAesKey = []byte("cfcd208495d565ef")

	// AesKey is the operator-configured key for V2 containers.
	AesKey []byte

	// XorKey is the single-byte key for V1/V2 XOR regions. V0 containers
	// infer their key from the image signature instead.
	XorKey byte = 0x37
)

var (
	ErrTooShort       = errors.New("container too short")
	ErrNeedAesKey     = errors.New("decryption requires a 16-byte key")
	ErrInvalidPadding = errors.New("invalid pkcs7 padding")
	ErrUnknownFormat  = errors.New("unknown image format after decryption")
)

// SetAesKey configures the V2 container key.
func SetAesKey(key []byte) error {
	if len(key) != aes.BlockSize {
		return ErrNeedAesKey
	}
	AesKey = bytes.Clone(key)
	return nil
}

// Version detects the container version from the leading signature bytes.
func Version(data []byte) int {
	if len(data) >= len(V1Signature) {
		if bytes.Equal(data[:6], V1Signature) {
			return VersionV1
		}
		if bytes.Equal(data[:6], V2Signature) {
			return VersionV2
		}
	}
	return VersionV0
}

// Dat2Image decrypts an image container and returns the image bytes and the
// sniffed extension. A wxgf payload is returned with Ext "wxgf"; callers that
// need a displayable image should pass it to Wxgf2Image.
func Dat2Image(data []byte) ([]byte, string, error) {
	if len(data) < 4 {
		return nil, "", fmt.Errorf("%w: %d bytes", ErrTooShort, len(data))
	}

	switch Version(data) {
	case VersionV1:
		return decryptV4(data, DefaultAesKey)
	case VersionV2:
		if len(AesKey) != aes.BlockSize {
			return nil, "", ErrNeedAesKey
		}
		return decryptV4(data, AesKey)
	default:
		return decryptV0(data)
	}
}

// decryptV0 recovers a whole-file XOR container. The key byte is inferred by
// lining the leading bytes up against known image signatures.
func decryptV0(data []byte) ([]byte, string, error) {
	findFormat := func(data []byte, header []byte) bool {
		xorBit := data[0] ^ header[0]
		for i := 0; i < len(header); i++ {
			if data[i]^header[i] != xorBit {
				return false
			}
		}
		return true
	}

	var xorBit byte
	var find bool
	var ext string
	for _, format := range Formats {
		if len(data) < len(format.Header) {
			continue
		}
		if find = findFormat(data, format.Header); find {
			xorBit = data[0] ^ format.Header[0]
			ext = format.Ext
			break
		}
	}

	if !find {
		return nil, "", fmt.Errorf("unknown image type: %x %x", data[0], data[1])
	}

	out := XorBytes(data, xorBit)
	return out, ext, nil
}

// decryptV4 handles V1/V2 containers: aesSize bytes of AES-128-ECB (padded to
// whole blocks), a passthrough region, and xorSize trailing bytes XORed with
// the single-byte key. Output layout is unpadded ++ raw ++ xored.
func decryptV4(data []byte, key []byte) ([]byte, string, error) {
	if len(data) < headerSize {
		return nil, "", fmt.Errorf("%w: %d bytes", ErrTooShort, len(data))
	}

	aesSize := int(binary.LittleEndian.Uint32(data[aesSizeOffset : aesSizeOffset+4]))
	xorSize := int(binary.LittleEndian.Uint32(data[xorSizeOffset : xorSizeOffset+4]))

	body := data[headerSize:]

	// AES region is padded up to a whole block count.
	aesEncSize := aesSize
	if rem := aesEncSize % aes.BlockSize; rem != 0 {
		aesEncSize += aes.BlockSize - rem
	}
	if aesEncSize > len(body) {
		return nil, "", fmt.Errorf("aes region %d exceeds container body %d", aesEncSize, len(body))
	}
	if xorSize > len(body)-aesEncSize {
		return nil, "", fmt.Errorf("xor region %d exceeds container body %d", xorSize, len(body))
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, "", err
	}

	decrypted := make([]byte, aesEncSize)
	for i := 0; i < aesEncSize; i += aes.BlockSize {
		block.Decrypt(decrypted[i:i+aes.BlockSize], body[i:i+aes.BlockSize])
	}

	unpadded, err := pkcs7Unpad(decrypted)
	if err != nil {
		return nil, "", err
	}

	raw := body[aesEncSize : len(body)-xorSize]
	xored := XorBytes(body[len(body)-xorSize:], XorKey)

	out := make([]byte, 0, len(unpadded)+len(raw)+len(xored))
	out = append(out, unpadded...)
	out = append(out, raw...)
	out = append(out, xored...)

	ext, err := Sniff(out)
	if err != nil {
		return nil, "", err
	}
	return out, ext, nil
}

// Sniff identifies the image format by magic bytes. A wxgf tag is reported as
// its own extension rather than an error so callers can attempt recovery.
func Sniff(data []byte) (string, error) {
	for _, format := range Formats {
		if bytes.HasPrefix(data, format.Header) {
			return format.Ext, nil
		}
	}
	if bytes.HasPrefix(data, WXGF.Header) {
		return WXGF.Ext, nil
	}
	return "", fmt.Errorf("%w: %x", ErrUnknownFormat, data[:min(4, len(data))])
}

// pkcs7Unpad strictly validates and strips pkcs7 padding: the padding length
// must be 1..16 and every padding byte must equal it. Never truncates
// silently.
func pkcs7Unpad(b []byte) ([]byte, error) {
	if len(b) == 0 || len(b)%aes.BlockSize != 0 {
		return nil, ErrInvalidPadding
	}
	n := int(b[len(b)-1])
	if n < 1 || n > aes.BlockSize || n > len(b) {
		return nil, ErrInvalidPadding
	}
	for _, v := range b[len(b)-n:] {
		if int(v) != n {
			return nil, ErrInvalidPadding
		}
	}
	return b[:len(b)-n], nil
}

// XorBytes XORs every byte of data with key. Applying it twice with the same
// key is the identity.
func XorBytes(data []byte, key byte) []byte {
	out := make([]byte, len(data))
	for i := range data {
		out[i] = data[i] ^ key
	}
	return out
}
