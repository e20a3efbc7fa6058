//go:build mobile

package utils

// IsMobile 移动端编译时返回 true，查看器改用触屏控制
func IsMobile() bool {
	return true
}
