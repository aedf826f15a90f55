package util

import (
	"testing"
	"time"
)

func TestParseTime(t *testing.T) {
	// 日期格式
	got, ok := ParseTime("2023-05-01")
	if !ok {
		t.Fatalf("ParseTime(2023-05-01) failed")
	}
	want := time.Date(2023, 5, 1, 0, 0, 0, 0, time.Local)
	if !got.Equal(want) {
		t.Errorf("ParseTime() = %v, want %v", got, want)
	}

	// 10 位时间戳
	got, ok = ParseTime("1683000000")
	if !ok || got.Unix() != 1683000000 {
		t.Errorf("ParseTime(1683000000) = %v, %v", got, ok)
	}

	// 13 位毫秒时间戳归一化为秒
	got, ok = ParseTime("1683000000123")
	if !ok || got.Unix() != 1683000000 {
		t.Errorf("ParseTime(ms) = %v, %v", got, ok)
	}

	if _, ok := ParseTime("not a time"); ok {
		t.Errorf("ParseTime should fail on garbage")
	}
}

func TestTimeRangeOf(t *testing.T) {
	// 空串是全量范围
	start, end, ok := TimeRangeOf("")
	if !ok || start.Unix() != 0 || end.Before(time.Now().Add(-time.Minute)) {
		t.Errorf("TimeRangeOf(\"\") = %v ~ %v, %v", start, end, ok)
	}

	// 单个日期覆盖全天
	start, end, ok = TimeRangeOf("2023-05-01")
	if !ok {
		t.Fatalf("TimeRangeOf(2023-05-01) failed")
	}
	if start.Hour() != 0 || end.Hour() != 23 || end.Minute() != 59 {
		t.Errorf("day range = %v ~ %v", start, end)
	}

	// 年份覆盖全年
	start, end, ok = TimeRangeOf("2023")
	if !ok || start.Month() != 1 || end.Month() != 12 {
		t.Errorf("year range = %v ~ %v", start, end)
	}

	// start~end 显式范围
	start, end, ok = TimeRangeOf("2023-01-01~2023-02-01")
	if !ok || !start.Before(end) {
		t.Errorf("explicit range = %v ~ %v, %v", start, end, ok)
	}

	if _, _, ok := TimeRangeOf("bad~input~here"); ok {
		t.Errorf("TimeRangeOf should fail on garbage")
	}
}

func TestPerfectTimeFormat(t *testing.T) {
	sameYear := PerfectTimeFormat(
		time.Date(2023, 1, 1, 0, 0, 0, 0, time.Local),
		time.Date(2023, 6, 1, 0, 0, 0, 0, time.Local))
	if sameYear != "01-02 15:04:05" {
		t.Errorf("same year format = %q", sameYear)
	}

	crossYear := PerfectTimeFormat(
		time.Date(2022, 1, 1, 0, 0, 0, 0, time.Local),
		time.Date(2023, 6, 1, 0, 0, 0, 0, time.Local))
	if crossYear != "2006-01-02 15:04:05" {
		t.Errorf("cross year format = %q", crossYear)
	}
}
