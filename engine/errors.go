package engine

import (
	"errors"
	"fmt"
)

// 引擎對外的錯誤分類，所有錯誤都可供呼叫端以 errors.Is/As 判別，
// 人類可讀文字的呈現是外部層的責任。
var (
	// ErrInvalidToken 供應商憑證不存在，該請求不可重試
	ErrInvalidToken = errors.New("invalid supplier token")
	// ErrAuctionNotFound 拍賣不存在
	ErrAuctionNotFound = errors.New("auction not found")
	// ErrAuctionNotActive 操作只允許在 Active 狀態下執行
	ErrAuctionNotActive = errors.New("auction is not active")
	// ErrAuctionCompleted 拍賣已結束，出價不再受理
	ErrAuctionCompleted = errors.New("auction is completed")
	// ErrAlreadyStarted 拍賣已啟動過，start 不可重入
	ErrAlreadyStarted = errors.New("auction already started")
	// ErrSupplierConcluded 供應商已結標，對該組 (auction, supplier) 永久生效
	ErrSupplierConcluded = errors.New("supplier has concluded bidding")
	// ErrConcurrencyTimeout 無法在限定時間內取得拍賣鎖，可安全重試
	ErrConcurrencyTimeout = errors.New("auction lock acquisition timed out")
	// ErrBidMismatch 出價的品項序列與拍賣品項不對齊
	ErrBidMismatch = errors.New("bid item prices do not match auction items")
)

// Rule 是價格規則的機器可讀代碼。
type Rule string

const (
	RulePositivePrice Rule = "unit_price_not_positive"
	RuleCeiling       Rule = "unit_price_not_below_ceiling"
	RuleDecrementGrid Rule = "unit_price_off_decrement_grid"
	RuleLeaderStep    Rule = "total_not_below_leader_by_min_step"
)

// RuleViolation 描述一筆候選出價違反了哪條規則
// 品項層級的規則會帶上 ItemCode，彙總層級的規則則否。
// 驗證失敗不產生任何副作用。
type RuleViolation struct {
	Rule     Rule   `json:"rule"`
	ItemCode string `json:"item_code,omitempty"`
	Detail   string `json:"detail"`
}

func (v *RuleViolation) Error() string {
	if v.ItemCode != "" {
		return fmt.Sprintf("bid rejected: rule=%s item=%s detail=%s", v.Rule, v.ItemCode, v.Detail)
	}
	return fmt.Sprintf("bid rejected: rule=%s detail=%s", v.Rule, v.Detail)
}
