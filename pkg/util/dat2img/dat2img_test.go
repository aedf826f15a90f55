package dat2img

import (
	"bytes"
	"crypto/aes"
	"encoding/binary"
	"errors"
	"testing"
)

func TestXorBytesInverse(t *testing.T) {
	data := []byte{0x00, 0x01, 0x7F, 0xFF, 0xD8, 0x37}
	out := XorBytes(XorBytes(data, 0x5A), 0x5A)
	if !bytes.Equal(out, data) {
		t.Errorf("XorBytes twice is not identity: %x", out)
	}
}

func TestVersionDetect(t *testing.T) {
	v1 := append(bytes.Clone(V1Signature), make([]byte, 16)...)
	if Version(v1) != VersionV1 {
		t.Errorf("V1 signature not detected")
	}
	v2 := append(bytes.Clone(V2Signature), make([]byte, 16)...)
	if Version(v2) != VersionV2 {
		t.Errorf("V2 signature not detected")
	}
	// 无签名回落 V0
	if Version([]byte{0xFF, 0xD8, 0xFF, 0xE0, 0x00, 0x01}) != VersionV0 {
		t.Errorf("plain data should be V0")
	}
	if Version([]byte{0x07, 0x08}) != VersionV0 {
		t.Errorf("short data should be V0")
	}
}

func TestDecryptV0(t *testing.T) {
	img := []byte{0xFF, 0xD8, 0xFF, 0xE0, 'h', 'e', 'l', 'l', 'o'}
	enc := XorBytes(img, 0xA7)

	out, ext, err := Dat2Image(enc)
	if err != nil {
		t.Fatalf("Dat2Image() error: %v", err)
	}
	if ext != "jpg" {
		t.Errorf("ext = %q, want jpg", ext)
	}
	if !bytes.Equal(out, img) {
		t.Errorf("decrypted = %x, want %x", out, img)
	}
}

func TestDecryptV0UnknownFormat(t *testing.T) {
	// 任何 XOR 键都对不上已知图片签名
	if _, _, err := Dat2Image([]byte{0x01, 0x02, 0x03, 0x04, 0x05}); err == nil {
		t.Errorf("expected error for unknown format")
	}
}

// buildV4 构造 V1/V2 容器：头 15 字节 + AES 区 + 透传区 + XOR 区
func buildV4(t *testing.T, sig []byte, key []byte, img []byte, aesSize, xorSize int) []byte {
	t.Helper()

	header := make([]byte, headerSize)
	copy(header, sig)
	binary.LittleEndian.PutUint32(header[aesSizeOffset:], uint32(aesSize))
	binary.LittleEndian.PutUint32(header[xorSizeOffset:], uint32(xorSize))

	plain := img[:aesSize]
	pad := aes.BlockSize - len(plain)%aes.BlockSize
	padded := append(bytes.Clone(plain), bytes.Repeat([]byte{byte(pad)}, pad)...)

	block, err := aes.NewCipher(key)
	if err != nil {
		t.Fatal(err)
	}
	enc := make([]byte, len(padded))
	for i := 0; i < len(padded); i += aes.BlockSize {
		block.Encrypt(enc[i:i+aes.BlockSize], padded[i:i+aes.BlockSize])
	}

	raw := img[aesSize : len(img)-xorSize]
	xored := XorBytes(img[len(img)-xorSize:], XorKey)

	out := append(bytes.Clone(header), enc...)
	out = append(out, raw...)
	out = append(out, xored...)
	return out
}

func TestDecryptV1(t *testing.T) {
	img := []byte{0xFF, 0xD8, 0xFF, 0xE0, 0x00, 0x10, 'J', 'F', 'I', 'F',
		'p', 'a', 'y', 'l', 'o', 'a', 'd', '1', '2', '3'}
	data := buildV4(t, V1Signature, DefaultAesKey, img, 10, 4)

	out, ext, err := Dat2Image(data)
	if err != nil {
		t.Fatalf("Dat2Image() error: %v", err)
	}
	if ext != "jpg" {
		t.Errorf("ext = %q, want jpg", ext)
	}
	if !bytes.Equal(out, img) {
		t.Errorf("decrypted = %x, want %x", out, img)
	}
}

func TestDecryptV2(t *testing.T) {
	key := []byte("0123456789abcdef")
	if err := SetAesKey(key); err != nil {
		t.Fatal(err)
	}
	defer func() { AesKey = nil }()

	img := append([]byte{0x89, 0x50, 0x4E, 0x47}, bytes.Repeat([]byte{0xAB}, 20)...)
	data := buildV4(t, V2Signature, key, img, 12, 4)

	out, ext, err := Dat2Image(data)
	if err != nil {
		t.Fatalf("Dat2Image() error: %v", err)
	}
	if ext != "png" {
		t.Errorf("ext = %q, want png", ext)
	}
	if !bytes.Equal(out, img) {
		t.Errorf("decrypted = %x, want %x", out, img)
	}
}

func TestDecryptV2NoKey(t *testing.T) {
	AesKey = nil
	data := append(bytes.Clone(V2Signature), make([]byte, 32)...)
	if _, _, err := Dat2Image(data); !errors.Is(err, ErrNeedAesKey) {
		t.Errorf("expected ErrNeedAesKey, got %v", err)
	}
}

func TestSetAesKeyLength(t *testing.T) {
	if err := SetAesKey([]byte("short")); !errors.Is(err, ErrNeedAesKey) {
		t.Errorf("expected ErrNeedAesKey for short key, got %v", err)
	}
}

func TestPkcs7Unpad(t *testing.T) {
	// 合法填充
	b := append(bytes.Repeat([]byte{0x11}, 12), 4, 4, 4, 4)
	out, err := pkcs7Unpad(b)
	if err != nil {
		t.Fatalf("pkcs7Unpad() error: %v", err)
	}
	if len(out) != 12 {
		t.Errorf("len = %d, want 12", len(out))
	}

	// 末字节 0 非法
	bad := append(bytes.Repeat([]byte{0x11}, 15), 0)
	if _, err := pkcs7Unpad(bad); !errors.Is(err, ErrInvalidPadding) {
		t.Errorf("padding 0 should be rejected, got %v", err)
	}

	// 末字节超过块大小非法
	bad = append(bytes.Repeat([]byte{0x11}, 15), 17)
	if _, err := pkcs7Unpad(bad); !errors.Is(err, ErrInvalidPadding) {
		t.Errorf("padding 17 should be rejected, got %v", err)
	}

	// 填充字节不一致非法
	bad = append(bytes.Repeat([]byte{0x11}, 13), 2, 3, 3)
	if _, err := pkcs7Unpad(bad); !errors.Is(err, ErrInvalidPadding) {
		t.Errorf("inconsistent padding should be rejected, got %v", err)
	}

	// 非整块输入非法
	if _, err := pkcs7Unpad(bytes.Repeat([]byte{0x01}, 15)); !errors.Is(err, ErrInvalidPadding) {
		t.Errorf("non-block input should be rejected, got %v", err)
	}
}

func TestSniff(t *testing.T) {
	if ext, err := Sniff([]byte{0x77, 0x78, 0x67, 0x66, 0x00}); err != nil || ext != "wxgf" {
		t.Errorf("Sniff(wxgf) = %q, %v", ext, err)
	}
	if _, err := Sniff([]byte{0x00, 0x01, 0x02, 0x03}); err == nil {
		t.Errorf("Sniff should fail on unknown bytes")
	}
}
