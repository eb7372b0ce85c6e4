package mexc

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/betbot/copytrade/internal/ports"
	"github.com/betbot/copytrade/pkg/ratelimit"
)

var log = logrus.WithField("component", "mexc")

const DefaultBaseURL = "https://contract.mexc.com"

// Config 单个账户的客户端配置
type Config struct {
	Name       string
	BaseURL    string
	APIKey     string
	APISecret  string
	Timeout    time.Duration
	RetryCount int // 仅查询类请求重试；下单/撤单/改单不重试，避免重复下单
	OpenType   int // 1=逐仓 2=全仓
	Leverage   int
	Limiter    *ratelimit.Manager
}

// Client MEXC 合约 REST 客户端
type Client struct {
	name      string
	apiKey    string
	apiSecret string
	openType  int
	leverage  int

	read    *resty.Client
	write   *resty.Client
	limiter *ratelimit.Manager
	now     func() time.Time
}

var (
	_ ports.ExchangeClient    = (*Client)(nil)
	_ ports.OrderStatusGetter = (*Client)(nil)
	_ ports.MarkPriceGetter   = (*Client)(nil)
)

func New(cfg Config) *Client {
	base := strings.TrimSuffix(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		base = DefaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	openType := cfg.OpenType
	if openType == 0 {
		openType = 2
	}
	limiter := cfg.Limiter
	if limiter == nil {
		limiter = ratelimit.NewManager()
	}

	read := resty.New().
		SetBaseURL(base).
		SetTimeout(timeout).
		SetRetryCount(cfg.RetryCount).
		SetRetryWaitTime(500 * time.Millisecond).
		SetRetryMaxWaitTime(5 * time.Second).
		AddRetryCondition(func(resp *resty.Response, err error) bool {
			return resp != nil && resp.StatusCode() == http.StatusTooManyRequests
		})
	write := resty.New().
		SetBaseURL(base).
		SetTimeout(timeout)

	return &Client{
		name:      cfg.Name,
		apiKey:    cfg.APIKey,
		apiSecret: cfg.APISecret,
		openType:  openType,
		leverage:  cfg.Leverage,
		read:      read,
		write:     write,
		limiter:   limiter,
		now:       time.Now,
	}
}

func (c *Client) Name() string { return c.name }

// envelope 所有接口的统一响应结构
type envelope struct {
	Success bool            `json:"success"`
	Code    int             `json:"code"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
}

// sign 签名 = hex(HMAC-SHA256(secret, apiKey + 毫秒时间戳 + 参数串))
func sign(secret, apiKey, reqTime, paramString string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(apiKey + reqTime + paramString))
	return hex.EncodeToString(mac.Sum(nil))
}

// canonicalQuery GET 请求的参数串：按 key 排序后 k=v 以 & 连接
func canonicalQuery(params map[string]string) string {
	if len(params) == 0 {
		return ""
	}
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+url.QueryEscape(params[k]))
	}
	return strings.Join(parts, "&")
}

type call struct {
	method   string
	path     string
	endpoint string // 限速分组
	query    map[string]string
	body     any
	private  bool
}

// do 执行请求并把 data 解码到 out；非 success 返回 *APIError
func (c *Client) do(ctx context.Context, cl call, out any) error {
	if err := c.limiter.Wait(ctx, cl.endpoint); err != nil {
		return errors.Wrap(err, "rate limit wait")
	}

	httpc := c.read
	if cl.method != http.MethodGet {
		httpc = c.write
	}
	r := httpc.R().SetContext(ctx).SetHeader("Content-Type", "application/json")

	paramString := ""
	if cl.method == http.MethodGet {
		if len(cl.query) > 0 {
			r.SetQueryParams(cl.query)
		}
		paramString = canonicalQuery(cl.query)
	} else if cl.body != nil {
		raw, err := json.Marshal(cl.body)
		if err != nil {
			return errors.Wrap(err, "marshal body")
		}
		r.SetBody(raw)
		paramString = string(raw)
	}

	if cl.private {
		reqTime := strconv.FormatInt(c.now().UnixMilli(), 10)
		r.SetHeader("ApiKey", c.apiKey)
		r.SetHeader("Request-Time", reqTime)
		r.SetHeader("Signature", sign(c.apiSecret, c.apiKey, reqTime, paramString))
	}

	resp, err := r.Execute(cl.method, cl.path)
	if err != nil {
		return errors.Wrapf(err, "%s %s", cl.method, cl.path)
	}

	var env envelope
	if err := json.Unmarshal(resp.Body(), &env); err != nil {
		if !resp.IsSuccess() {
			return &APIError{HTTPStatus: resp.StatusCode(), Message: strings.TrimSpace(string(resp.Body()))}
		}
		return errors.Wrapf(err, "decode %s response", cl.path)
	}
	if !env.Success || !resp.IsSuccess() {
		return &APIError{HTTPStatus: resp.StatusCode(), Code: env.Code, Message: env.Message}
	}
	if out == nil || len(env.Data) == 0 || string(env.Data) == "null" {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return errors.Wrapf(err, "decode %s data", cl.path)
	}
	return nil
}

func logEntry(c *Client) *logrus.Entry {
	return log.WithField("account", c.name)
}
