// Package priority は未鑑賞リストのスコアリングと積集合の計算を提供する。
//
// このパッケージの関数はすべて純粋関数として実装する。呼び出し側が渡した
// users/moviesのスナップショットだけを読み、新しい結果を返す。内部状態、
// I/O、ロギングを一切持たないため、並行呼び出しも安全である。
// 入力が空でもエラーにはならず、常に値（空の結果か0）を返す。
package priority

import (
	"sort"

	"github.com/disconcision/movienight/internal/model"
)

// AggregateScore は映画の位置重み付き集計スコアを計算する。
// 各ユーザーの未鑑賞リスト（長さn）で映画がindex iにあれば n-i を加算する。
// リスト先頭は n、末尾は 1 の重みになる。リストに含まないユーザーは 0 を
// 加算するだけで、減点はしない。usersが空、またはどのユーザーも持っていない
// 映画のスコアは 0 になる。
func AggregateScore(movieID string, users []model.User) int {
	score := 0
	for _, u := range users {
		n := len(u.UnseenMovies)
		for i, id := range u.UnseenMovies {
			if id == movieID {
				score += n - i
				break
			}
		}
	}
	return score
}

// UnseenIntersection は全ユーザーの未鑑賞リストに共通して含まれる映画IDを返す。
//
// エッジケースの定義:
//   - ユーザー0人 → 空
//   - ユーザー1人 → そのユーザーの未鑑賞リスト全体
//   - 2人以上 → 全員のリストにまたがる真の積集合
//
// 先頭ユーザーのリストを作業集合の種とし、以降のユーザーごとに
// 含まれないIDを落としていく。作業集合が空になったら打ち切る。
// 結果に重複は含まない。2人以上の場合の並び順は契約上未規定
// （実装上は先頭ユーザーのリスト順になる）。
func UnseenIntersection(users []model.User) []string {
	if len(users) == 0 {
		return []string{}
	}

	working := make([]string, len(users[0].UnseenMovies))
	copy(working, users[0].UnseenMovies)

	for _, u := range users[1:] {
		if len(working) == 0 {
			break
		}

		member := make(map[string]struct{}, len(u.UnseenMovies))
		for _, id := range u.UnseenMovies {
			member[id] = struct{}{}
		}

		kept := working[:0]
		for _, id := range working {
			if _, ok := member[id]; ok {
				kept = append(kept, id)
			}
		}
		working = kept
	}

	return working
}

// IntersectionWithScores は未鑑賞リストの積集合を集計スコアで降順に並べて返す。
// 積集合の各IDについてAggregateScoreを計算し、moviesカタログからMovieを
// 解決する。カタログで解決できないID（宙に浮いた参照）はエラーにせず
// 黙って除外する。同点は安定ソートにより積集合の並び順を保持する。
// 空の入力には空の結果を返す。
func IntersectionWithScores(users []model.User, movies []model.Movie) []model.AggregateMovieScore {
	byID := make(map[string]*model.Movie, len(movies))
	for i := range movies {
		byID[movies[i].ID] = &movies[i]
	}

	ids := UnseenIntersection(users)
	scored := make([]model.AggregateMovieScore, 0, len(ids))
	for _, id := range ids {
		movie, ok := byID[id]
		if !ok {
			continue
		}
		scored = append(scored, model.AggregateMovieScore{
			MovieID: id,
			Score:   AggregateScore(id, users),
			Movie:   movie,
		})
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})

	return scored
}

// CountUnseenBy は映画を未鑑賞リストに含むユーザーの人数を返す。
// リスト内の位置は考慮しない、AggregateScoreの重みなし版。
// 「N人が未鑑賞」バッジ表示用。
func CountUnseenBy(movieID string, users []model.User) int {
	count := 0
	for _, u := range users {
		for _, id := range u.UnseenMovies {
			if id == movieID {
				count++
				break
			}
		}
	}
	return count
}
