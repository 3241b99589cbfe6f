package engine

import (
	"time"

	"bidflow/models"
)

// 狀態機：Draft → Active → Completed，只會單向前進。
// 所有轉移都必須在該拍賣的臨界區內執行，
// 讓「時鐘剛到期」與「出價剛抵達」不可能在同一瞬間同時成立。

// startAuction 將拍賣從 Draft 轉為 Active 並設定時鐘。
// 已啟動過(Active/Completed)時回傳 ErrAlreadyStarted。
func startAuction(a *models.Auction, now time.Time) error {
	if a.Status != models.StatusDraft {
		return ErrAlreadyStarted
	}
	end := now.Add(time.Duration(a.Config.DurationMinutes) * time.Minute)
	a.Status = models.StatusActive
	a.StartTime = &now
	a.EndTime = &end
	return nil
}

// extendIfNearEnd 在 Active 狀態下檢查事件時間是否落在結束前的延長窗口內，
// 是則把 end_time 往後推一個延長量。每次核定出價都可以安全呼叫，
// 窗口外為 no-op。maxExtensions 限制累計延長次數(<=0 表示不設限)。
func extendIfNearEnd(a *models.Auction, eventTime time.Time, maxExtensions int) bool {
	if a.Status != models.StatusActive || a.EndTime == nil {
		return false
	}
	buffer := time.Duration(a.Config.BufferMinutes) * time.Minute
	if buffer <= 0 {
		return false
	}
	if maxExtensions > 0 && a.Extensions >= maxExtensions {
		return false
	}
	if a.EndTime.Sub(eventTime) >= buffer {
		return false
	}
	newEnd := a.EndTime.Add(buffer)
	a.EndTime = &newEnd
	a.Extensions++
	return true
}

// clockTick 是時間驅動的到期檢查：Active 且 now >= end_time 時轉為 Completed。
// 回傳是否發生了轉移。
func clockTick(a *models.Auction, now time.Time) bool {
	if a.Status != models.StatusActive || a.EndTime == nil {
		return false
	}
	if now.Before(*a.EndTime) {
		return false
	}
	a.Status = models.StatusCompleted
	a.Terminated = false
	return true
}

// terminateAuction 是採購方的提前結束：只在 Active 狀態下合法，
// 立即轉為 Completed 並凍結目前 L1 為最終結果。
func terminateAuction(a *models.Auction) error {
	if a.Status != models.StatusActive {
		return ErrAuctionNotActive
	}
	a.Status = models.StatusCompleted
	a.Terminated = true
	return nil
}
