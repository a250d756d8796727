package repository

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"

	"github.com/CloudonixMobileSDK-SampleApps/cloudonix-sample-reg-free-server/internal/apperror"
	"github.com/CloudonixMobileSDK-SampleApps/cloudonix-sample-reg-free-server/internal/model"
	"github.com/redis/go-redis/v9"
)

// maxTxRetries bounds optimistic transaction retries after a WATCH abort.
const maxTxRetries = 5

// RedisDeviceRepository keeps each device in a hash, with one string key
// per unique field pointing back at the device id:
//
//	{prefix}:device:seq                 id counter
//	{prefix}:devices                    sorted set of ids
//	{prefix}:device:{id}                hash: id, os_type, identifier, msisdn
//	{prefix}:device:identifier:{value}  id
//	{prefix}:device:msisdn:{value}      id
type RedisDeviceRepository struct {
	rdb    *redis.Client
	prefix string
	mu     sync.Mutex
	logger *slog.Logger
}

func NewRedisDeviceRepository(rdb *redis.Client, prefix string, logger *slog.Logger) *RedisDeviceRepository {
	return &RedisDeviceRepository{
		rdb:    rdb,
		prefix: prefix,
		logger: logger.With("component", "RedisDeviceRepository"),
	}
}

func (r *RedisDeviceRepository) seqKey() string   { return r.prefix + ":device:seq" }
func (r *RedisDeviceRepository) indexKey() string { return r.prefix + ":devices" }

func (r *RedisDeviceRepository) recordKey(id int64) string {
	return r.prefix + ":device:" + strconv.FormatInt(id, 10)
}

func (r *RedisDeviceRepository) identifierKey(identifier string) string {
	return r.prefix + ":device:identifier:" + identifier
}

func (r *RedisDeviceRepository) msisdnKey(msisdn string) string {
	return r.prefix + ":device:msisdn:" + msisdn
}

// List returns all devices ordered by id
func (r *RedisDeviceRepository) List(ctx context.Context) ([]model.Device, error) {
	ids, err := r.rdb.ZRange(ctx, r.indexKey(), 0, -1).Result()
	if err != nil {
		return nil, apperror.Store("list", err)
	}

	cmds := make([]*redis.MapStringStringCmd, 0, len(ids))
	_, err = r.rdb.Pipelined(ctx, func(p redis.Pipeliner) error {
		for _, id := range ids {
			cmds = append(cmds, p.HGetAll(ctx, r.prefix+":device:"+id))
		}
		return nil
	})
	if err != nil {
		return nil, apperror.Store("list", err)
	}

	devices := make([]model.Device, 0, len(cmds))
	for _, cmd := range cmds {
		d, err := parseDevice(cmd.Val())
		if err != nil {
			return nil, apperror.Store("list", err)
		}
		if d != nil {
			devices = append(devices, *d)
		}
	}
	return devices, nil
}

// GetByIdentifier finds a device by push identifier
func (r *RedisDeviceRepository) GetByIdentifier(ctx context.Context, identifier string) (*model.Device, error) {
	d, err := r.getByKey(ctx, r.rdb, r.identifierKey(identifier))
	return d, apperror.Store("get", err)
}

// GetByMsisdn finds a device by phone number
func (r *RedisDeviceRepository) GetByMsisdn(ctx context.Context, msisdn string) (*model.Device, error) {
	d, err := r.getByKey(ctx, r.rdb, r.msisdnKey(msisdn))
	return d, apperror.Store("get", err)
}

func (r *RedisDeviceRepository) DeleteByIdentifier(ctx context.Context, identifier string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.logger.Info("removing device", "identifier", identifier)
	return apperror.Store("delete", r.deleteByKey(ctx, r.identifierKey(identifier)))
}

func (r *RedisDeviceRepository) DeleteByMsisdn(ctx context.Context, msisdn string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.logger.Info("removing devices with msisdn", "msisdn", msisdn)
	return apperror.Store("delete", r.deleteByKey(ctx, r.msisdnKey(msisdn)))
}

// Register serialises conflict resolution within this process; each write
// is additionally guarded by WATCH on every key it reads or rewrites.
func (r *RedisDeviceRepository) Register(ctx context.Context, msisdn, identifier, osType string) (*model.Device, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, err := register(ctx, redisWriter{r}, r.logger, msisdn, identifier, osType)
	if err != nil {
		var validation *apperror.ValidationError
		if errors.As(err, &validation) {
			return nil, err
		}
		return nil, apperror.Store("register", err)
	}
	return d, nil
}

// redisReader is satisfied by both the client and a WATCH transaction.
type redisReader interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	HGetAll(ctx context.Context, key string) *redis.MapStringStringCmd
}

// getByKey resolves an index key to its device.
func (r *RedisDeviceRepository) getByKey(ctx context.Context, c redisReader, key string) (*model.Device, error) {
	id, err := c.Get(ctx, key).Int64()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	vals, err := c.HGetAll(ctx, r.recordKey(id)).Result()
	if err != nil {
		return nil, err
	}
	return parseDevice(vals)
}

func (r *RedisDeviceRepository) deleteByKey(ctx context.Context, key string) error {
	return r.watch(ctx, func(tx *redis.Tx) error {
		d, err := r.getByKey(ctx, tx, key)
		if err != nil || d == nil {
			return err
		}
		if err := tx.Watch(ctx, r.recordKey(d.ID)).Err(); err != nil {
			return err
		}
		current, err := r.getByKey(ctx, tx, key)
		if err != nil {
			return err
		}
		if current == nil || *current != *d {
			return redis.TxFailedErr
		}
		_, err = tx.TxPipelined(ctx, func(p redis.Pipeliner) error {
			p.Del(ctx, r.recordKey(d.ID), r.identifierKey(d.Identifier), r.msisdnKey(d.Msisdn))
			p.ZRem(ctx, r.indexKey(), d.ID)
			return nil
		})
		return err
	}, key)
}

// watch runs fn as an optimistic transaction, retrying when a watched key
// changed underneath it.
func (r *RedisDeviceRepository) watch(ctx context.Context, fn func(tx *redis.Tx) error, keys ...string) error {
	for i := 0; i < maxTxRetries; i++ {
		err := r.rdb.Watch(ctx, fn, keys...)
		if !errors.Is(err, redis.TxFailedErr) {
			return err
		}
		r.logger.Debug("redis transaction aborted, retrying", "keys", keys, "attempt", i+1)
	}
	return fmt.Errorf("redis transaction on %v: %w", keys, redis.TxFailedErr)
}

// redisWriter runs with r.mu held.
type redisWriter struct {
	r *RedisDeviceRepository
}

func (w redisWriter) insert(ctx context.Context, d *model.Device) (model.WriteResult, error) {
	r := w.r
	identKey, msKey := r.identifierKey(d.Identifier), r.msisdnKey(d.Msisdn)

	var result model.WriteResult
	err := r.watch(ctx, func(tx *redis.Tx) error {
		n, err := tx.Exists(ctx, identKey).Result()
		if err != nil {
			return err
		}
		if n > 0 {
			result = model.Conflicted(model.ConflictIdentifier)
			return nil
		}
		if n, err = tx.Exists(ctx, msKey).Result(); err != nil {
			return err
		}
		if n > 0 {
			result = model.Conflicted(model.ConflictMsisdn)
			return nil
		}

		id, err := tx.Incr(ctx, r.seqKey()).Result()
		if err != nil {
			return err
		}
		stored := *d
		stored.ID = id

		_, err = tx.TxPipelined(ctx, func(p redis.Pipeliner) error {
			p.HSet(ctx, r.recordKey(id),
				"id", id,
				"os_type", stored.OSType,
				"identifier", stored.Identifier,
				"msisdn", stored.Msisdn,
			)
			p.Set(ctx, identKey, id, 0)
			p.Set(ctx, msKey, id, 0)
			p.ZAdd(ctx, r.indexKey(), redis.Z{Score: float64(id), Member: id})
			return nil
		})
		if err != nil {
			return err
		}
		result = model.Written(&stored)
		return nil
	}, identKey, msKey)
	return result, err
}

func (w redisWriter) updateMsisdn(ctx context.Context, identifier, msisdn string) (model.WriteResult, error) {
	r := w.r
	identKey, msKey := r.identifierKey(identifier), r.msisdnKey(msisdn)

	var result model.WriteResult
	err := r.watch(ctx, func(tx *redis.Tx) error {
		d, err := r.getByKey(ctx, tx, identKey)
		if err != nil {
			return err
		}
		if d == nil {
			return fmt.Errorf("device %q not found for msisdn update", identifier)
		}
		if d.Msisdn == msisdn {
			result = model.Written(d)
			return nil
		}

		// The record and its current msisdn key are only known after the
		// read, so watch them now and re-read to catch a change in between.
		oldKey := r.msisdnKey(d.Msisdn)
		if err := tx.Watch(ctx, oldKey, r.recordKey(d.ID)).Err(); err != nil {
			return err
		}
		current, err := r.getByKey(ctx, tx, identKey)
		if err != nil {
			return err
		}
		if current == nil || current.ID != d.ID || current.Msisdn != d.Msisdn {
			return redis.TxFailedErr
		}

		holder, err := tx.Get(ctx, msKey).Int64()
		switch {
		case errors.Is(err, redis.Nil):
		case err != nil:
			return err
		case holder != d.ID:
			result = model.Conflicted(model.ConflictMsisdn)
			return nil
		}

		_, err = tx.TxPipelined(ctx, func(p redis.Pipeliner) error {
			p.HSet(ctx, r.recordKey(d.ID), "msisdn", msisdn)
			p.Del(ctx, oldKey)
			p.Set(ctx, msKey, d.ID, 0)
			return nil
		})
		if err != nil {
			return err
		}
		d.Msisdn = msisdn
		result = model.Written(d)
		return nil
	}, identKey, msKey)
	return result, err
}

func (w redisWriter) deleteByMsisdn(ctx context.Context, msisdn string) error {
	return w.r.deleteByKey(ctx, w.r.msisdnKey(msisdn))
}

// parseDevice decodes a device hash; an empty hash is an absent device.
func parseDevice(vals map[string]string) (*model.Device, error) {
	if len(vals) == 0 {
		return nil, nil
	}
	id, err := strconv.ParseInt(vals["id"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("corrupt device hash: bad id %q", vals["id"])
	}
	return &model.Device{
		ID:         id,
		OSType:     vals["os_type"],
		Identifier: vals["identifier"],
		Msisdn:     vals["msisdn"],
	}, nil
}
