package wiki

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/sirupsen/logrus"
	"github.com/sourcegraph/conc/pool"

	"github.com/yumiao07/genshin-QA-system/internal/processor"
)

const (
	defaultBaseURL     = "https://genshin-impact.fandom.com"
	defaultUserAgent   = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	defaultTimeout     = 15 * time.Second
	defaultDelay       = 2 * time.Second
	defaultConcurrency = 3
)

// CharacterRef 角色列表页上的一个条目
type CharacterRef struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// CrawlResult 批量爬取的结果
type CrawlResult struct {
	Characters []*processor.RawCharacter // 成功爬到的角色，保持列表页顺序
	Failed     []string                  // 失败角色的名称
}

// Crawler fandom wiki角色页面爬虫
type Crawler struct {
	httpClient  *http.Client
	baseURL     string
	userAgent   string
	delay       time.Duration // 单个goroutine内两次请求间的间隔
	concurrency int
	maxChars    int // 最多爬取数量，0表示不限制
	logger      *logrus.Logger
}

// CrawlerOption 爬虫配置选项
type CrawlerOption func(*Crawler)

// WithHTTPClient 设置自定义HTTP客户端
func WithHTTPClient(client *http.Client) CrawlerOption {
	return func(c *Crawler) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithBaseURL 设置wiki站点地址
func WithBaseURL(baseURL string) CrawlerOption {
	return func(c *Crawler) {
		if baseURL != "" {
			c.baseURL = baseURL
		}
	}
}

// WithDelay 设置请求间隔，避免给站点造成压力
func WithDelay(delay time.Duration) CrawlerOption {
	return func(c *Crawler) {
		if delay >= 0 {
			c.delay = delay
		}
	}
}

// WithConcurrency 设置并发抓取的goroutine数量
func WithConcurrency(n int) CrawlerOption {
	return func(c *Crawler) {
		if n > 0 {
			c.concurrency = n
		}
	}
}

// WithMaxCharacters 限制爬取的角色数量，用于测试和增量运行
func WithMaxCharacters(n int) CrawlerOption {
	return func(c *Crawler) {
		if n >= 0 {
			c.maxChars = n
		}
	}
}

// WithCrawlerLogger 设置自定义日志记录器
func WithCrawlerLogger(logger *logrus.Logger) CrawlerOption {
	return func(c *Crawler) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewCrawler 创建wiki爬虫
func NewCrawler(opts ...CrawlerOption) *Crawler {
	c := &Crawler{
		httpClient:  &http.Client{Timeout: defaultTimeout},
		baseURL:     defaultBaseURL,
		userAgent:   defaultUserAgent,
		delay:       defaultDelay,
		concurrency: defaultConcurrency,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = logrus.New()
	}
	return c
}

// fetchDocument 抓取单个页面并解析为goquery文档
func (c *Crawler) fetchDocument(ctx context.Context, url string) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request for %s: %w", url, err)
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d for %s", resp.StatusCode, url)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", url, err)
	}
	return doc, nil
}

// FetchCharacterList 抓取角色列表页，返回去重后的角色条目
func (c *Crawler) FetchCharacterList(ctx context.Context) ([]CharacterRef, error) {
	url := c.baseURL + "/wiki/Character/List"
	c.logger.WithField("url", url).Info("Fetching character list")

	doc, err := c.fetchDocument(ctx, url)
	if err != nil {
		return nil, err
	}

	refs := parseCharacterList(doc, c.baseURL)
	c.logger.WithField("count", len(refs)).Info("Character list fetched")
	return refs, nil
}

// FetchCharacter 抓取并解析单个角色页面
func (c *Crawler) FetchCharacter(ctx context.Context, url string) (*processor.RawCharacter, error) {
	doc, err := c.fetchDocument(ctx, url)
	if err != nil {
		return nil, err
	}
	raw := parseCharacterPage(doc, url)
	if raw == nil {
		return nil, fmt.Errorf("no parseable content at %s", url)
	}
	return raw, nil
}

// CrawlCharacters 抓取全部角色页面
// 多个goroutine并发抓取，结果按列表页顺序回填，单页失败不影响其它页面
func (c *Crawler) CrawlCharacters(ctx context.Context) (*CrawlResult, error) {
	refs, err := c.FetchCharacterList(ctx)
	if err != nil {
		return nil, err
	}
	if c.maxChars > 0 && len(refs) > c.maxChars {
		refs = refs[:c.maxChars]
	}

	c.logger.WithFields(logrus.Fields{
		"characters":  len(refs),
		"concurrency": c.concurrency,
	}).Info("Crawling character pages")

	crawled := make([]*processor.RawCharacter, len(refs))
	p := pool.New().WithMaxGoroutines(c.concurrency)
	for idx, ref := range refs {
		idx, ref := idx, ref
		p.Go(func() {
			if c.delay > 0 {
				select {
				case <-ctx.Done():
					return
				case <-time.After(c.delay):
				}
			}
			raw, err := c.FetchCharacter(ctx, ref.URL)
			if err != nil {
				c.logger.WithError(err).WithField("character", ref.Name).Warn("Failed to crawl character page")
				return
			}
			crawled[idx] = raw
		})
	}
	p.Wait()

	result := &CrawlResult{}
	for i, raw := range crawled {
		if raw == nil {
			result.Failed = append(result.Failed, refs[i].Name)
			continue
		}
		result.Characters = append(result.Characters, raw)
	}

	c.logger.WithFields(logrus.Fields{
		"succeeded": len(result.Characters),
		"failed":    len(result.Failed),
	}).Info("Character crawl completed")

	return result, nil
}
