package model

// TruncateString cắt chuỗi xuống độ dài tối đa cho phép, an toàn với ký tự
// nhiều byte để không cắt giữa một ký tự UTF-8
func TruncateString(s string, maxLength int) string {
	if len(s) <= maxLength {
		return s
	}
	runes := []rune(s)
	if len(runes) <= maxLength {
		return s
	}
	return string(runes[:maxLength])
}
