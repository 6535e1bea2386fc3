package models

import "errors"

var (
	// ErrCharacterNotFound 角色不存在错误
	ErrCharacterNotFound = errors.New("character not found")

	// ErrInvalidCrawlStatus 无效的爬取状态错误
	ErrInvalidCrawlStatus = errors.New("invalid crawl status")
)
