package util

const (
	StorageLocal = "local"
	StorageMinio = "minio"
	StorageOSS   = "oss"
)

// 文件上传相关常量
const (
	MimeVideo = "video/"
	MimeJPEG  = "image/jpeg"
)

const (
	DefaultPage  = 1
	DefaultLimit = 20
	MaxLimit     = 100
)

var (
	AllowedVideoExtensions = []string{".mp4", ".mov", ".mkv", ".webm", ".m4v"}
)
