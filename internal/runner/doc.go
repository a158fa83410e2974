// Package runner は1つのストレスクライアントのライフサイクルを制御する。
//
// 状態は INIT → HANDSHAKE → RUNNING → SHUTTING_DOWN → TERMINATED と進む。
//
// # INIT
//
// ストアに接続し、対象のデータベースとテーブルが存在することを確認して
// 統計ファイルを開く。失敗は設定エラーとして扱い、ハンドシェイクには進まない。
//
// # HANDSHAKE
//
// 標準出力に ready を書き、標準入力から go を受け取るまで待つ。
//
// # RUNNING
//
// ループの先頭で中断を確認し、統計ウィンドウの境界に達していれば書き出し、
// 操作を1つ選んで実行する。ストアのエラーが5回続くと、以降は失敗ごとに
// 0.5秒休む。成功するとカウンタは0に戻る。
//
// 実行中の操作は中断のキャンセルから切り離したコンテキストで動くため、
// 割り込みで操作が途中で打ち切られることはない。
//
// # SHUTTING_DOWN
//
// 残っているウィンドウを次の境界の時刻で書き出し、ファイルとストアを閉じる。
//
// # 使用例
//
//	r, err := runner.New(cfg, client, runner.WithLogger(log))
//	if err != nil {
//	    return err
//	}
//	if err := r.Run(ctx); err != nil {
//	    return err
//	}
package runner
