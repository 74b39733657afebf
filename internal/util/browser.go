package util

import (
	"fmt"
	"net/url"
	"os/exec"
	"runtime"

	"github.com/MakiDevelop/ting-data-etl/internal/layout"
)

// BrowseURL 报表浏览服务的入口地址
// 未指定商店时指向商店列表；指定商店时指向其文件列表；再指定文件时直接打开该文件
func BrowseURL(port int, store, file string) (string, error) {
	base := fmt.Sprintf("http://localhost:%d/api/stores", port)
	if store == "" {
		if file != "" {
			return "", fmt.Errorf("文件 %q 需要同时指定商店", file)
		}
		return base, nil
	}
	if !layout.SafeName(store) {
		return "", fmt.Errorf("非法的商店序号: %q", store)
	}
	if file == "" {
		return base + "/" + url.PathEscape(store) + "/files", nil
	}
	if !layout.SafeName(file) || !layout.IsCSV(file) {
		return "", fmt.Errorf("非法的文件名: %q", file)
	}
	return base + "/" + url.PathEscape(store) + "/files/" + url.PathEscape(file), nil
}

// linuxBrowsers xdg-open 不可用时依次尝试
var linuxBrowsers = []string{"google-chrome", "firefox", "chromium-browser", "sensible-browser"}

// browserCommand 各平台打开 URL 的默认命令
func browserCommand(goos, url string) *exec.Cmd {
	switch goos {
	case "windows":
		// rundll32 在 Windows 7 上也可用
		return exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	case "darwin":
		return exec.Command("open", url)
	default:
		return exec.Command("xdg-open", url)
	}
}

// OpenBrowser 用系统默认浏览器打开 URL
func OpenBrowser(url string) error {
	return browserCommand(runtime.GOOS, url).Start()
}

// OpenBrowserWithFallback 默认方式失败时尝试备选命令
func OpenBrowserWithFallback(url string) error {
	err := OpenBrowser(url)
	if err == nil {
		return nil
	}

	switch runtime.GOOS {
	case "windows":
		return exec.Command("explorer", url).Start()
	case "linux":
		for _, browser := range linuxBrowsers {
			if err := exec.Command(browser, url).Start(); err == nil {
				return nil
			}
		}
	}
	return err
}
