package errcode

// 错误码约定：
// - 0：无错误
// - 4xxx：输入或资源问题，重试无效
// - 5xxx：系统错误，已用尽重试
const (
	OK              = 0
	InvalidResume   = 4000
	ResourceMissing = 4004
	SystemError     = 5000
)
