package recordaccess

import (
	"context"
	"fmt"

	"scanmatch/internal/ipc"
	"scanmatch/internal/records"
)

// Access provides record store operations regardless of IPC or direct store
// backing.
type Access interface {
	List(ctx context.Context) ([]ipc.Record, error)
	Describe(ctx context.Context, name string) (*ipc.Record, error)
	Remove(ctx context.Context, name string) error
	Clear(ctx context.Context) (int64, error)
	Size(ctx context.Context) (int64, error)
}

// NewIPCAccess returns an Access backed by daemon IPC.
func NewIPCAccess(client *ipc.Client) Access {
	return &ipcAccess{client: client}
}

// NewStoreAccess returns an Access backed by direct DB access.
func NewStoreAccess(store *records.Store) Access {
	return &storeAccess{store: store}
}

type ipcAccess struct {
	client *ipc.Client
}

func (a *ipcAccess) List(_ context.Context) ([]ipc.Record, error) {
	resp, err := a.client.Records("")
	if err != nil {
		return nil, err
	}
	return resp.Records, nil
}

func (a *ipcAccess) Describe(_ context.Context, name string) (*ipc.Record, error) {
	resp, err := a.client.Records(name)
	if err != nil {
		return nil, err
	}
	if resp == nil || len(resp.Records) == 0 {
		return nil, nil
	}
	return &resp.Records[0], nil
}

func (a *ipcAccess) Remove(_ context.Context, name string) error {
	_, err := a.client.RemoveRecord(name)
	return err
}

func (a *ipcAccess) Clear(_ context.Context) (int64, error) {
	resp, err := a.client.ClearRecords()
	if err != nil {
		return 0, err
	}
	return resp.Removed, nil
}

func (a *ipcAccess) Size(_ context.Context) (int64, error) {
	resp, err := a.client.Status()
	if err != nil {
		return 0, err
	}
	return resp.DatabaseBytes, nil
}

type storeAccess struct {
	store *records.Store
}

func (a *storeAccess) List(ctx context.Context) ([]ipc.Record, error) {
	entries, err := a.store.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]ipc.Record, 0, len(entries))
	for _, entry := range entries {
		out = append(out, ipc.RecordFromEntry(entry))
	}
	return out, nil
}

func (a *storeAccess) Describe(ctx context.Context, name string) (*ipc.Record, error) {
	entry, err := a.store.Find(ctx, name)
	if err != nil {
		return nil, err
	}
	if entry == nil {
		return nil, fmt.Errorf("%q: %w", name, records.ErrNotEnrolled)
	}
	rec := ipc.RecordFromEntry(entry)
	return &rec, nil
}

func (a *storeAccess) Remove(ctx context.Context, name string) error {
	return a.store.Remove(ctx, name)
}

func (a *storeAccess) Clear(ctx context.Context) (int64, error) {
	return a.store.Clear(ctx)
}

func (a *storeAccess) Size(ctx context.Context) (int64, error) {
	return a.store.Size(ctx)
}
