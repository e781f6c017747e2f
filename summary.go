package sina2html

import (
	"fmt"
	"log/slog"
)

// TerminalState 分页抓取的结束状态，全部属于正常完成
type TerminalState string

const (
	// StateExhausted 某一页去重后没有产生任何新链接，列表已走完
	StateExhausted TerminalState = "exhausted"

	// StateCeilingReached 达到 max_pages 硬上限
	StateCeilingReached TerminalState = "ceiling_reached"

	// StateCanceled 运行被中断(Ctrl-C等)，已完成部分保持有效
	StateCanceled TerminalState = "canceled"
)

// RunSummary 一次备份运行的统计结果
type RunSummary struct {
	PagesWalked      int           // 实际抓取的列表页数
	PostsDiscovered  int           // 去重后发现的文章数
	PostsArchived    int           // 本次新归档的文章数
	PostsSkipped     int           // 已存在而跳过的文章数
	PostsFailed      int           // 抓取或解析失败的文章数
	ImagesDownloaded int           // 下载成功的图片数
	State            TerminalState // 结束状态
}

// String implements fmt.Stringer for the final report line.
func (s *RunSummary) String() string {
	return fmt.Sprintf("列表页 %d, 发现 %d, 归档 %d, 跳过 %d, 失败 %d, 图片 %d, 状态 %s",
		s.PagesWalked, s.PostsDiscovered, s.PostsArchived,
		s.PostsSkipped, s.PostsFailed, s.ImagesDownloaded, s.State)
}

// LogValue implements slog.LogValuer.
func (s *RunSummary) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int("pages", s.PagesWalked),
		slog.Int("discovered", s.PostsDiscovered),
		slog.Int("archived", s.PostsArchived),
		slog.Int("skipped", s.PostsSkipped),
		slog.Int("failed", s.PostsFailed),
		slog.Int("images", s.ImagesDownloaded),
		slog.String("state", string(s.State)),
	)
}
