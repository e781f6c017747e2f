package sina2html

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/BurntSushi/toml"
)

// ManifestEntry 清单中的一条归档记录，按稳定ID作为主键
type ManifestEntry struct {
	StableID    string    `toml:"stable_id"`
	URL         string    `toml:"url"`
	Title       string    `toml:"title"`
	PublishedAt string    `toml:"published_at"`
	Category    string    `toml:"category"`
	Tags        []string  `toml:"tags"`
	File        string    `toml:"file"` // 相对归档根目录的文章页路径
	ArchivedAt  time.Time `toml:"archived_at"`
}

// manifest 归档清单的落盘形式
type manifest struct {
	Entries   []ManifestEntry `toml:"entries"`
	UpdatedAt time.Time       `toml:"updated_at"`
}

// Archive manages the on-disk archive: one HTML file per post under
// posts/, a shared manifest keyed by stable id, and the rendered index.
// The manifest is loaded on open, which makes re-runs idempotent: a post
// whose stable id is already present is never written twice.
type Archive struct {
	mu      sync.Mutex
	progMu  sync.Mutex
	root    string
	entries []ManifestEntry
	byID    map[string]int
}

// OpenArchive 打开(或初始化)归档目录并加载现有清单
func OpenArchive(root string) (*Archive, error) {
	if root == "" {
		return nil, NewConfigError("归档目录不能为空")
	}
	for _, dir := range []string{root, filepath.Join(root, "posts")} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, NewIOError(fmt.Sprintf("创建归档目录失败: %s", dir), err)
		}
	}

	a := &Archive{root: root, byID: make(map[string]int)}

	manifestPath := a.manifestPath()
	if _, err := os.Stat(manifestPath); err == nil {
		var m manifest
		if _, err := toml.DecodeFile(manifestPath, &m); err != nil {
			return nil, NewIOError("读取归档清单失败", err)
		}
		a.entries = m.Entries
		for i, entry := range m.Entries {
			a.byID[entry.StableID] = i
		}
	}

	return a, nil
}

// Root 归档根目录
func (a *Archive) Root() string {
	return a.root
}

func (a *Archive) manifestPath() string {
	return filepath.Join(a.root, "manifest.toml")
}

// Exists 判断稳定ID对应的文章是否已归档
func (a *Archive) Exists(stableID string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	_, ok := a.byID[stableID]
	return ok
}

// Len 已归档文章数量
func (a *Archive) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.entries)
}

// Entries 返回清单记录的副本
func (a *Archive) Entries() []ManifestEntry {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]ManifestEntry, len(a.entries))
	copy(out, a.entries)
	return out
}

// SavePost 渲染文章页写入 posts/<stable-id>.html 并更新清单。
// 同一稳定ID重复保存时直接返回，保证一篇文章至多一个文件。
func (a *Archive) SavePost(post *Post) error {
	if post.StableID == "" {
		return NewIOError("文章缺少稳定ID", nil)
	}

	a.mu.Lock()
	if _, ok := a.byID[post.StableID]; ok {
		a.mu.Unlock()
		return nil
	}
	a.mu.Unlock()

	page, err := RenderPostPage(post)
	if err != nil {
		return NewIOError("渲染文章页失败", err)
	}

	relFile := filepath.ToSlash(filepath.Join("posts", post.StableID+".html"))
	target := filepath.Join(a.root, "posts", post.StableID+".html")
	if err := os.WriteFile(target, []byte(page), 0644); err != nil {
		return NewIOError(fmt.Sprintf("写入文章页失败: %s", target), err)
	}

	entry := ManifestEntry{
		StableID:    post.StableID,
		URL:         post.URL,
		Title:       post.Title,
		PublishedAt: post.PublishedAt,
		Category:    post.Category,
		Tags:        post.Tags,
		File:        relFile,
		ArchivedAt:  time.Now(),
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	// 并发worker可能在渲染期间写入了同一篇
	if _, ok := a.byID[post.StableID]; ok {
		return nil
	}
	a.entries = append(a.entries, entry)
	a.byID[entry.StableID] = len(a.entries) - 1
	return a.writeManifestLocked()
}

// writeManifestLocked 写入清单文件，调用方必须持有锁
func (a *Archive) writeManifestLocked() error {
	file, err := os.Create(a.manifestPath())
	if err != nil {
		return NewIOError("写入归档清单失败", err)
	}
	defer file.Close()

	m := manifest{Entries: a.entries, UpdatedAt: time.Now()}
	if err := toml.NewEncoder(file).Encode(m); err != nil {
		return NewIOError("序列化归档清单失败", err)
	}
	return nil
}

// SaveMarkdown 写入文章的Markdown导出
func (a *Archive) SaveMarkdown(stableID, content string) error {
	target := filepath.Join(a.root, "posts", stableID+".md")
	if err := os.WriteFile(target, []byte(content), 0644); err != nil {
		return NewIOError(fmt.Sprintf("写入Markdown失败: %s", target), err)
	}
	return nil
}

// SaveRawHTML 保存文章的原始HTML，便于事后重新解析
func (a *Archive) SaveRawHTML(stableID, rawHTML string) error {
	dir := filepath.Join(a.root, "raw")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return NewIOError("创建raw目录失败", err)
	}
	target := filepath.Join(dir, stableID+".html")
	if err := os.WriteFile(target, []byte(rawHTML), 0644); err != nil {
		return NewIOError(fmt.Sprintf("写入原始HTML失败: %s", target), err)
	}
	return nil
}

// WriteIndex 根据清单重新生成索引页，按发布时间倒序。
// 索引始终从清单整体渲染，中断运行不会留下损坏的索引。
func (a *Archive) WriteIndex() error {
	entries := a.Entries()
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].PublishedAt != entries[j].PublishedAt {
			return entries[i].PublishedAt > entries[j].PublishedAt
		}
		return entries[i].ArchivedAt.After(entries[j].ArchivedAt)
	})

	items := make([]IndexItem, 0, len(entries))
	for _, entry := range entries {
		items = append(items, IndexItem{
			File:        entry.File,
			Title:       entry.Title,
			PublishedAt: entry.PublishedAt,
			Category:    entry.Category,
			Tags:        entry.Tags,
		})
	}

	page, err := RenderIndexPage(items)
	if err != nil {
		return NewIOError("渲染索引页失败", err)
	}
	target := filepath.Join(a.root, "index.html")
	if err := os.WriteFile(target, []byte(page), 0644); err != nil {
		return NewIOError("写入索引页失败", err)
	}
	return nil
}

// WriteProgress 写入进度快照(JSON与自刷新的HTML两种形式)。
// 进度文件只做展示，写入失败不影响备份。
func (a *Archive) WriteProgress(state ProgressState) {
	// 多个worker会并发上报进度，串行化避免两次写入交错
	a.progMu.Lock()
	defer a.progMu.Unlock()

	data, err := json.MarshalIndent(state, "", "  ")
	if err == nil {
		_ = os.WriteFile(filepath.Join(a.root, "progress.json"), data, 0644)
	}
	if page, err := RenderProgressPage(state); err == nil {
		_ = os.WriteFile(filepath.Join(a.root, "progress.html"), []byte(page), 0644)
	}
}
