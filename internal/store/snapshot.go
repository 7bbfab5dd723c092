package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/betbot/aviatorbot/internal/strategy"
)

// SaveParams 保存策略参数（JSON）
func SaveParams(ctx context.Context, s Store, p strategy.Params) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal %s params: %w", p.Kind(), err)
	}
	return s.Set(ctx, ParamsKey(string(p.Kind())), string(data))
}

// LoadParams 读取所有已保存的策略参数；解码或校验失败的条目被跳过并返回在 skipped 里
func LoadParams(ctx context.Context, s Store) (params map[strategy.Kind]strategy.Params, skipped []error, err error) {
	params = make(map[strategy.Kind]strategy.Params)
	for _, kind := range strategy.Kinds {
		raw, ok, err := s.Get(ctx, ParamsKey(string(kind)))
		if err != nil {
			return nil, nil, err
		}
		if !ok {
			continue
		}
		p, err := strategy.DecodeParams(kind, []byte(raw))
		if err == nil {
			err = p.Validate()
		}
		if err != nil {
			skipped = append(skipped, fmt.Errorf("%s: %w", kind, err))
			continue
		}
		params[kind] = p
	}
	return params, skipped, nil
}

// SaveActive 保存当前激活的策略
func SaveActive(ctx context.Context, s Store, kind strategy.Kind) error {
	return s.Set(ctx, KeyActiveStrategy, string(kind))
}

// LoadActive 读取激活策略；没有记录时返回 none
func LoadActive(ctx context.Context, s Store) (strategy.Kind, error) {
	raw, ok, err := s.Get(ctx, KeyActiveStrategy)
	if err != nil || !ok {
		return strategy.KindNone, err
	}
	return strategy.ParseKind(raw)
}

// SaveStop 保存策略自动停用事件；ev=nil 时清空
func SaveStop(ctx context.Context, s Store, ev *strategy.StopEvent) error {
	if ev == nil {
		return s.Set(ctx, KeyLastStop, "")
	}
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal stop event: %w", err)
	}
	return s.Set(ctx, KeyLastStop, string(data))
}

// LoadStop 读取停用事件；没有记录时返回 nil
func LoadStop(ctx context.Context, s Store) (*strategy.StopEvent, error) {
	raw, ok, err := s.Get(ctx, KeyLastStop)
	if err != nil || !ok || raw == "" {
		return nil, err
	}
	var ev strategy.StopEvent
	if err := json.Unmarshal([]byte(raw), &ev); err != nil {
		return nil, fmt.Errorf("parse %s: %w", KeyLastStop, err)
	}
	return &ev, nil
}

// GetInt64 读取整数配置
func GetInt64(ctx context.Context, s Store, key string, def int64) (int64, error) {
	raw, ok, err := s.Get(ctx, key)
	if err != nil || !ok {
		return def, err
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return def, fmt.Errorf("parse %s=%q: %w", key, raw, err)
	}
	return v, nil
}

// GetBool 读取布尔配置
func GetBool(ctx context.Context, s Store, key string, def bool) (bool, error) {
	raw, ok, err := s.Get(ctx, key)
	if err != nil || !ok {
		return def, err
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return def, fmt.Errorf("parse %s=%q: %w", key, raw, err)
	}
	return v, nil
}
