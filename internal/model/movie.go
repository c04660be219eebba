package model

import "time"

// Movie はカタログに登録された映画を表す。
// IDはカタログ内部の不透明なキーで、TmdbIDは外部メタデータAPI側のID。
type Movie struct {
	ID        string
	TmdbID    string
	Title     string
	Year      int
	Rating    float64
	Overview  string
	PosterURL string
	CreatedAt time.Time
	UpdatedAt time.Time
	// RatingRefreshedAt はメタデータAPIから評価値を最後に取得した日時。
	// 未取得の場合はゼロ値。リフレッシュジョブの対象選定に使う。
	RatingRefreshedAt time.Time
}

// AggregateMovieScore は全メンバーの未鑑賞リストから導出した映画の集計スコア。
// 永続化されない導出値で、全員の未鑑賞リストに含まれ、かつ
// カタログで解決できた映画IDに対してのみ構築される。
type AggregateMovieScore struct {
	MovieID string
	Score   int
	Movie   *Movie
}
