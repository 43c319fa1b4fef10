package dto

// ── 节次模块 DTO ──

// TimeslotResponse 节次信息响应
type TimeslotResponse struct {
	PairNo    int    `json:"pair_no"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
	Range     string `json:"range"` // "HH:MM - HH:MM"
}
