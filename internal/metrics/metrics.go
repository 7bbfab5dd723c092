package metrics

import "expvar"

var (
	RoundsObserved  = expvar.NewInt("rounds_observed")
	OutcomesApplied = expvar.NewInt("outcomes_applied")
	FilterApproved  = expvar.NewInt("filter_approved")
	FilterBlocks    = expvar.NewInt("filter_blocks")
	BetsFired       = expvar.NewInt("bets_fired")
	FakeBets        = expvar.NewInt("fake_bets")
	Reloads         = expvar.NewInt("reloads")
	ClickErrors     = expvar.NewInt("click_errors")
	StoreErrors     = expvar.NewInt("store_errors")
	ConfigReloads   = expvar.NewInt("config_reloads")

	// FilterBlocksBy 按失败子过滤器名称计数
	FilterBlocksBy = expvar.NewMap("filter_blocks_by")
)
