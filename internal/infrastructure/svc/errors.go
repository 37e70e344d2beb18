package svc

import "errors"

// ErrStorageInitFailed 错误：存储初始化失败
var ErrStorageInitFailed = errors.New("storage initialization failed")

// ErrUnsupportedDriver 错误：不支持的数据库驱动
var ErrUnsupportedDriver = errors.New("unsupported database driver")
