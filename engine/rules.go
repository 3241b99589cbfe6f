package engine

import (
	"fmt"

	"github.com/shopspring/decimal"

	"bidflow/models"
)

// EvaluatePolicy 控制評估時套用的規則範圍。
// Draft 階段的預備出價可以設定為只檢查價格上限與降幅網格，
// 不與目前 L1 競爭。
type EvaluatePolicy int

const (
	// PolicyFullRules 套用全部四條規則
	PolicyFullRules EvaluatePolicy = iota
	// PolicyCeilingOnly 只套用品項層級規則(正值、上限、網格)，略過 L1 競爭規則
	PolicyCeilingOnly
)

// EvaluateBid 以精確定點運算驗證候選出價，無任何狀態副作用
// unitPrices 依品項順序對齊 items。leaderTotal 為目前 L1 總價，沒有 L1 時為 nil。
// 規則依序為：
//  1. 每個單價必須為正值
//  2. 每個單價必須嚴格低於該品項生效的上限價
//  3. (上限價 − 單價) 必須是該品項生效降幅的非負整數倍(降幅為 0 時停用)，
//     確保所有出價落在同一個價格網格上，杜絕無意義的微幅壓價
//  4. 總價必須低於目前 L1 總價至少「彙總最小降幅」Σ(數量×降幅)
//
// 回傳第一個違反的規則，以保持確定性。
func EvaluateBid(items []models.AuctionItem, cfg models.AuctionConfig, unitPrices []decimal.Decimal, leaderTotal *decimal.Decimal, policy EvaluatePolicy) *RuleViolation {
	for i, item := range items {
		price := unitPrices[i]
		ceiling := item.EffectiveCeiling(cfg)
		dec := item.EffectiveDecrement(cfg)

		if price.Sign() <= 0 {
			return &RuleViolation{
				Rule:     RulePositivePrice,
				ItemCode: item.ItemCode,
				Detail:   fmt.Sprintf("unit price %s must be positive", price),
			}
		}
		if !price.LessThan(ceiling) {
			return &RuleViolation{
				Rule:     RuleCeiling,
				ItemCode: item.ItemCode,
				Detail:   fmt.Sprintf("unit price %s must be strictly below ceiling %s", price, ceiling),
			}
		}
		if dec.Sign() > 0 {
			diff := ceiling.Sub(price)
			if !diff.Mod(dec).IsZero() {
				return &RuleViolation{
					Rule:     RuleDecrementGrid,
					ItemCode: item.ItemCode,
					Detail:   fmt.Sprintf("ceiling %s minus unit price %s is not a multiple of decrement %s", ceiling, price, dec),
				}
			}
		}
	}

	if policy == PolicyCeilingOnly || leaderTotal == nil {
		return nil
	}

	total := BidTotal(items, unitPrices)
	step := AggregateMinStep(items, cfg)
	if step.Sign() > 0 {
		maxAllowed := leaderTotal.Sub(step)
		if total.GreaterThan(maxAllowed) {
			return &RuleViolation{
				Rule:   RuleLeaderStep,
				Detail: fmt.Sprintf("total %s must not exceed %s (current leader %s minus aggregate step %s)", total, maxAllowed, leaderTotal, step),
			}
		}
	} else if !total.LessThan(*leaderTotal) {
		return &RuleViolation{
			Rule:   RuleLeaderStep,
			Detail: fmt.Sprintf("total %s must be strictly below current leader %s", total, leaderTotal),
		}
	}
	return nil
}

// BidTotal 計算出價總額 Σ(單價×數量)。
func BidTotal(items []models.AuctionItem, unitPrices []decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for i, item := range items {
		total = total.Add(unitPrices[i].Mul(item.Quantity))
	}
	return total
}

// AggregateMinStep 計算彙總最小降幅 Σ(數量×生效降幅)，
// 作為超越目前 L1 所需的最小改善額度。
func AggregateMinStep(items []models.AuctionItem, cfg models.AuctionConfig) decimal.Decimal {
	step := decimal.Zero
	for _, item := range items {
		step = step.Add(item.Quantity.Mul(item.EffectiveDecrement(cfg)))
	}
	return step
}

// CeilingTotal 計算以各品項上限價計的總額，
// 作為帳本第 0 回合的合成 L1，讓首筆出價的降幅與走勢重建有固定錨點。
func CeilingTotal(items []models.AuctionItem, cfg models.AuctionConfig) decimal.Decimal {
	total := decimal.Zero
	for _, item := range items {
		total = total.Add(item.EffectiveCeiling(cfg).Mul(item.Quantity))
	}
	return total
}

// TotalQuantity 計算拍賣全部品項的數量總和，用於平均單價換算。
func TotalQuantity(items []models.AuctionItem) decimal.Decimal {
	qty := decimal.Zero
	for _, item := range items {
		qty = qty.Add(item.Quantity)
	}
	return qty
}
