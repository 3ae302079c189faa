package domain

// MessageStyle 通知メッセージの書式
type MessageStyle int

const (
	// StylePlain 装飾なしのテキスト
	StylePlain MessageStyle = iota
	// StyleHTML HTML タグ（<b>）による最小限の装飾
	StyleHTML
)
