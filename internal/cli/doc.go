// Package cli はstress-clientとstress-launcherのエントリポイントを実装する。
//
// mainパッケージはos.Argsと標準入出力を渡して終了コードを受け取るだけにし、
// 実際の処理はここで行う。テストやランチャーのテストから同じ処理を呼べる。
//
// # 終了コード
//
// - 0: 割り込みによる正常終了、または -h
// - 1: 設定エラー、ハンドシェイクのプロトコルエラー、内部不変条件の違反
package cli
