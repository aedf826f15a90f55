package model

import "testing"

const testHash = "0123456789abcdef0123456789abcdef"

func TestIsThumbName(t *testing.T) {
	if !IsThumbName(testHash + "_t.dat") {
		t.Errorf("_t suffix not detected")
	}
	if IsThumbName(testHash + ".dat") {
		t.Errorf("plain name misdetected as thumb")
	}
	if IsThumbName(testHash + "_h.dat") {
		t.Errorf("_h suffix misdetected as thumb")
	}
}

func TestNormalizeMediaName(t *testing.T) {
	for _, suffix := range []string{"", "_t", "_h", "_hd", "_m"} {
		if got := NormalizeMediaName("a/b/" + testHash + suffix + ".dat"); got != testHash {
			t.Errorf("NormalizeMediaName(%s%s) = %q", testHash, suffix, got)
		}
	}
	// 非哈希名去掉后缀没有意义，保留原样
	if got := NormalizeMediaName("avatar_t.png"); got != "avatar_t" {
		t.Errorf("NormalizeMediaName(avatar_t.png) = %q", got)
	}
}

func TestAcceptMediaName(t *testing.T) {
	if !AcceptMediaName(testHash + ".dat") {
		t.Errorf("bare hash rejected")
	}
	if !AcceptMediaName(testHash + "_hd.dat") {
		t.Errorf("quality suffix rejected")
	}
	if AcceptMediaName("random_file.dat") {
		t.Errorf("untrusted name accepted")
	}
}

func TestMediaRowWrap(t *testing.T) {
	row := &MediaRow{
		Type: "image",
		Key:  testHash,
		Dir1: "ab",
		Dir2: "cd",
		Name: testHash + "_t.dat",
	}
	media := row.Wrap()
	if media.Path != "msg/attach/ab/cd/Img/"+testHash+"_t.dat" {
		t.Errorf("image path = %q", media.Path)
	}
	if !media.IsThumb {
		t.Errorf("thumb flag lost")
	}

	row = &MediaRow{Type: "video", Key: testHash, Dir1: "ef", Name: testHash + ".mp4"}
	if got := row.Wrap().Path; got != "msg/video/ef/"+testHash+".mp4" {
		t.Errorf("video path = %q", got)
	}
}
