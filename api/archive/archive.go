package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/robfig/cron/v3"

	"github.com/GEMDevEng/GradientLab/api/model"
	"github.com/GEMDevEng/GradientLab/api/store"
)

// DefaultSchedule snapshots the fleet daily at 03:00.
const DefaultSchedule = "0 3 * * *"

type Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Region    string
	Bucket    string
	UseSSL    bool
}

// Client wraps the object store used for fleet snapshots.
type Client struct {
	mc     *minio.Client
	config Config
}

func NewClient(cfg Config) (*Client, error) {
	if cfg.Bucket == "" {
		cfg.Bucket = "gradientlab-reports"
	}
	mc, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("archive client: %w", err)
	}
	return &Client{mc: mc, config: cfg}, nil
}

func (c *Client) EnsureBucket(ctx context.Context) error {
	exists, err := c.mc.BucketExists(ctx, c.config.Bucket)
	if err != nil {
		return fmt.Errorf("check bucket %s: %w", c.config.Bucket, err)
	}
	if exists {
		return nil
	}
	region := c.config.Region
	if region == "" {
		region = "us-east-1"
	}
	if err := c.mc.MakeBucket(ctx, c.config.Bucket, minio.MakeBucketOptions{Region: region}); err != nil {
		return fmt.Errorf("create bucket %s: %w", c.config.Bucket, err)
	}
	log.Printf("archive: created bucket %s", c.config.Bucket)
	return nil
}

func (c *Client) PutSnapshot(ctx context.Context, key string, body []byte) error {
	_, err := c.mc.PutObject(ctx, c.config.Bucket, key, bytes.NewReader(body), int64(len(body)),
		minio.PutObjectOptions{ContentType: "application/json"})
	if err != nil {
		return fmt.Errorf("put %s/%s: %w", c.config.Bucket, key, err)
	}
	return nil
}

func (c *Client) Healthy(ctx context.Context) error {
	_, err := c.mc.ListBuckets(ctx)
	return err
}

// Store is the slice of the fleet store the snapshotter reads.
type Store interface {
	ListVMs(ctx context.Context) ([]model.VM, error)
	ListNodes(ctx context.Context) ([]model.Node, error)
	GetFleetStats(ctx context.Context) (*store.FleetStats, error)
}

// ObjectStore is what a snapshot gets written to.
type ObjectStore interface {
	EnsureBucket(ctx context.Context) error
	PutSnapshot(ctx context.Context, key string, body []byte) error
}

// Snapshot is the daily record of the whole fleet: every VM, every node
// with its histories, and the aggregate stats at capture time.
type Snapshot struct {
	TakenAt time.Time         `json:"takenAt"`
	Stats   *store.FleetStats `json:"stats"`
	VMs     []model.VM        `json:"vms"`
	Nodes   []model.Node      `json:"nodes"`
}

// Snapshotter captures the fleet state on a cron cadence and archives it.
type Snapshotter struct {
	Store    Store
	Objects  ObjectStore
	Schedule string

	cron *cron.Cron
}

func (s *Snapshotter) Start() error {
	if s.Schedule == "" {
		s.Schedule = DefaultSchedule
	}
	s.cron = cron.New()
	_, err := s.cron.AddFunc(s.Schedule, func() {
		if err := s.Capture(context.Background()); err != nil {
			log.Printf("archive: snapshot: %v", err)
		}
	})
	if err != nil {
		return err
	}
	s.cron.Start()
	log.Printf("archive: scheduled %q", s.Schedule)
	return nil
}

func (s *Snapshotter) Stop() {
	if s.cron == nil {
		return
	}
	<-s.cron.Stop().Done()
}

// Capture takes one snapshot now. Key layout: reports/2006-01-02.json,
// so a re-run on the same day overwrites rather than duplicates.
func (s *Snapshotter) Capture(ctx context.Context) error {
	vms, err := s.Store.ListVMs(ctx)
	if err != nil {
		return fmt.Errorf("snapshot vms: %w", err)
	}
	nodes, err := s.Store.ListNodes(ctx)
	if err != nil {
		return fmt.Errorf("snapshot nodes: %w", err)
	}
	stats, err := s.Store.GetFleetStats(ctx)
	if err != nil {
		return fmt.Errorf("snapshot stats: %w", err)
	}

	snap := Snapshot{TakenAt: time.Now().UTC(), Stats: stats, VMs: vms, Nodes: nodes}
	body, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("snapshot encode: %w", err)
	}

	if err := s.Objects.EnsureBucket(ctx); err != nil {
		return err
	}
	key := fmt.Sprintf("reports/%s.json", snap.TakenAt.Format("2006-01-02"))
	if err := s.Objects.PutSnapshot(ctx, key, body); err != nil {
		return err
	}
	log.Printf("archive: wrote %s (%d vms, %d nodes)", key, len(vms), len(nodes))
	return nil
}
