// Package config はstress-clientの設定を扱う。
//
// 設定は次の順に重ねて決まる。後のものが前のものを上書きする。
//
//  1. DefaultConfig の既定値
//  2. --preset で選んだプリセット
//  3. --config で指定したYAML/JSONファイル
//  4. 明示的に指定したコマンドラインフラグ
//
// # プリセット
//
// - default: 読み5 書き3 削除2
// - read-heavy: 読み込み中心
// - write-heavy: 書き込み中心、大きめのバッチ
// - churn: 書き込みと削除を繰り返す
// - bootstrap: 書き込みのみでテーブルを埋める
//
// # 使用例
//
//	cfg, err := config.Parse(os.Args[1:])
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.Weights)
package config
