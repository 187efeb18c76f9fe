// 手动清理过期的视频缓存
//
// 正常情况下每次打开播放页都会在后台触发一次清理。
// 此脚本用于长时间无人访问后手动回收磁盘或 Redis 空间。
//
// 用法: go run scripts/purge_video_cache.go [-config configs/config.yaml] [-max-age-hours 168] [-dry-run]

package main

import (
	"context"
	"flag"
	"fmt"
	"lms_backend/internal/config"
	"lms_backend/internal/videocache"
	"lms_backend/pkg/database"
	"lms_backend/pkg/logger"
	"log"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

func main() {
	configFile := flag.String("config", "configs/config.yaml", "配置文件路径")
	maxAgeHours := flag.Int("max-age-hours", 0, "覆盖配置中的保留时长（小时）")
	dryRun := flag.Bool("dry-run", false, "只打印生效的缓存配置，不执行清理")
	flag.Parse()

	// 与服务端相同的加载流程，环境变量覆盖同样生效
	cfg, err := config.LoadConfig(filepath.Dir(*configFile))
	if err != nil {
		log.Fatalf("加载配置失败: %v", err)
	}
	if *maxAgeHours > 0 {
		cfg.VideoCache.MaxAgeHours = *maxAgeHours
	}

	effective, err := yaml.Marshal(map[string]config.VideoCacheConfig{"video_cache": cfg.VideoCache})
	if err != nil {
		log.Fatalf("序列化配置失败: %v", err)
	}
	fmt.Print(string(effective))
	if *dryRun {
		return
	}

	logger.InitLogger(cfg)
	defer logger.Log.Sync()

	rdb, err := database.InitRedis(&cfg.Redis)
	if err != nil {
		log.Fatalf("Redis 连接失败: %v", err)
	}

	store, err := videocache.NewStore(cfg.VideoCache, rdb)
	if err != nil {
		log.Fatalf("打开视频缓存失败: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	resolver := videocache.NewResolver(store, nil, nil, videocache.WithMaxAge(cfg.VideoCache.MaxAge()))
	log.Printf("清理 %s 之前的视频缓存...", time.Now().Add(-resolver.MaxAge()).Format(time.RFC3339))
	removed := resolver.PurgeStaleEntries(ctx, resolver.MaxAge())
	log.Printf("完成！共删除 %d 条", removed)
}
