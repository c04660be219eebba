package app

// Command は起動サブコマンドを表す。
// 同一バイナリをAPIサーバー・バッチワーカー・マイグレーションの
// いずれのモードでも起動できるようにする。
type Command string

const (
	// CommandServe はAPIサーバーモードを示す。
	CommandServe Command = "serve"
	// CommandWorker は評価値リフレッシュとクリーンアップを実行する
	// バッチワーカーモードを示す。
	CommandWorker Command = "worker"
	// CommandMigrate はデータベースマイグレーションの適用を示す。
	CommandMigrate Command = "migrate"
	// CommandHealthcheck はヘルスチェックの実行を示す。
	// distroless環境でのDockerヘルスチェック用。
	CommandHealthcheck Command = "healthcheck"
)

// ParseCommand はコマンドライン引数の先頭からサブコマンドを解析する。
// 引数が空、またはサポート外のコマンドの場合はCommandServeにフォールバックする。
func ParseCommand(args []string) Command {
	if len(args) == 0 {
		return CommandServe
	}

	switch args[0] {
	case "serve":
		return CommandServe
	case "worker":
		return CommandWorker
	case "migrate":
		return CommandMigrate
	case "healthcheck":
		return CommandHealthcheck
	default:
		return CommandServe
	}
}
