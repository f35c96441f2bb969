package api

import (
	"strings"
	"unicode/utf8"

	"recruify/internal/storage"
)

// isValidResumeObjectKey 确认对象键属于该候选人的简历目录，防止越权读取。
func isValidResumeObjectKey(companyID, applicantID uint, key string) bool {
	if key == "" || !utf8.ValidString(key) {
		return false
	}
	if !strings.HasPrefix(key, storage.ResumePrefix(companyID, applicantID)) {
		return false
	}
	if strings.Contains(key, "..") || strings.Contains(key, "\\") || strings.Contains(key, "//") {
		return false
	}
	return len(key) <= 512
}
