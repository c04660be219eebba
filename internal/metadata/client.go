// Package metadata は外部映画メタデータAPIとの連携機能を提供する。
// メタデータの取得クライアントと評価値の定期更新ジョブを含む。
package metadata

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

// posterBaseURL はポスター画像の配信ベースURL。
// APIレスポンスのposter_pathと結合して完全なURLを構築する。
const posterBaseURL = "https://image.tmdb.org/t/p/w500"

// MovieMetadata は外部APIから取得した映画メタデータ。
type MovieMetadata struct {
	TmdbID    string
	Title     string
	Year      int
	Rating    float64
	Overview  string
	PosterURL string
}

// movieResponse は映画詳細APIのレスポンス。
type movieResponse struct {
	ID          int64   `json:"id"`
	Title       string  `json:"title"`
	ReleaseDate string  `json:"release_date"`
	VoteAverage float64 `json:"vote_average"`
	Overview    string  `json:"overview"`
	PosterPath  string  `json:"poster_path"`
}

// searchResponse は映画検索APIのレスポンス。
type searchResponse struct {
	Results []movieResponse `json:"results"`
}

// Client は映画メタデータAPIのクライアント。
// TMDB互換のJSONエンドポイントを対象とする。
type Client struct {
	httpClient *http.Client
	logger     *slog.Logger
	baseURL    string // テスト用にエンドポイントを差し替え可能
	apiKey     string
}

// NewClient はClientの新しいインスタンスを生成する。
// httpClientにはSSRF防止機能付きのクライアントを渡すことを想定している。
func NewClient(httpClient *http.Client, logger *slog.Logger, baseURL, apiKey string) *Client {
	return &Client{
		httpClient: httpClient,
		logger:     logger,
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		apiKey:     apiKey,
	}
}

// Lookup は外部IDで映画メタデータを取得する。
// 見つからない場合はnilを返す。
func (c *Client) Lookup(ctx context.Context, tmdbID string) (*MovieMetadata, error) {
	if tmdbID == "" {
		return nil, fmt.Errorf("tmdbID is required")
	}

	reqURL := fmt.Sprintf("%s/movie/%s", c.baseURL, url.PathEscape(tmdbID))

	body, statusCode, err := c.get(ctx, reqURL, nil)
	if err != nil {
		return nil, err
	}
	if statusCode == http.StatusNotFound {
		return nil, nil
	}
	if statusCode != http.StatusOK {
		c.logger.Error("メタデータAPIがエラーステータスを返しました",
			slog.Int("http_status", statusCode),
			slog.String("tmdb_id", tmdbID),
		)
		return nil, fmt.Errorf("メタデータAPIがステータス %d を返しました", statusCode)
	}

	var resp movieResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		c.logger.Error("メタデータAPIのレスポンスのパースに失敗しました",
			slog.String("error", err.Error()),
			slog.String("tmdb_id", tmdbID),
		)
		return nil, fmt.Errorf("レスポンスJSONのパースに失敗しました: %w", err)
	}

	return toMetadata(resp), nil
}

// Search はタイトルで映画を検索する。該当なしの場合は空スライスを返す。
func (c *Client) Search(ctx context.Context, title string) ([]MovieMetadata, error) {
	if strings.TrimSpace(title) == "" {
		return nil, fmt.Errorf("title is required")
	}

	reqURL := c.baseURL + "/search/movie"

	body, statusCode, err := c.get(ctx, reqURL, url.Values{"query": {title}})
	if err != nil {
		return nil, err
	}
	if statusCode != http.StatusOK {
		c.logger.Error("メタデータAPIがエラーステータスを返しました",
			slog.Int("http_status", statusCode),
			slog.String("query", title),
		)
		return nil, fmt.Errorf("メタデータAPIがステータス %d を返しました", statusCode)
	}

	var resp searchResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("レスポンスJSONのパースに失敗しました: %w", err)
	}

	results := make([]MovieMetadata, 0, len(resp.Results))
	for _, r := range resp.Results {
		results = append(results, *toMetadata(r))
	}
	return results, nil
}

// get はAPIキーを付与したGETリクエストを実行し、ボディとステータスコードを返す。
func (c *Client) get(ctx context.Context, rawURL string, query url.Values) ([]byte, int, error) {
	reqURL, err := url.Parse(rawURL)
	if err != nil {
		return nil, 0, fmt.Errorf("エンドポイントURLのパースに失敗しました: %w", err)
	}

	q := reqURL.Query()
	for key, values := range query {
		for _, v := range values {
			q.Add(key, v)
		}
	}
	if c.apiKey != "" {
		q.Set("api_key", c.apiKey)
	}
	reqURL.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL.String(), nil)
	if err != nil {
		return nil, 0, fmt.Errorf("HTTPリクエストの作成に失敗しました: %w", err)
	}
	req.Header.Set("User-Agent", "MovieNight/1.0")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("メタデータAPIの呼び出しに失敗しました",
			slog.String("error", err.Error()),
			slog.String("url", reqURL.String()),
		)
		return nil, 0, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, fmt.Errorf("レスポンスボディの読み取りに失敗しました: %w", err)
	}

	return body, resp.StatusCode, nil
}

// toMetadata はAPIレスポンスをMovieMetadataに変換する。
func toMetadata(resp movieResponse) *MovieMetadata {
	m := &MovieMetadata{
		TmdbID:   strconv.FormatInt(resp.ID, 10),
		Title:    resp.Title,
		Rating:   resp.VoteAverage,
		Overview: resp.Overview,
	}

	// release_dateは "2006-01-02" 形式。年だけを使う
	if len(resp.ReleaseDate) >= 4 {
		if year, err := strconv.Atoi(resp.ReleaseDate[:4]); err == nil {
			m.Year = year
		}
	}

	if resp.PosterPath != "" {
		m.PosterURL = posterBaseURL + resp.PosterPath
	}

	return m
}
