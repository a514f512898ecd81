package indexdb

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/whimxiqal/journey-sub005/internal/model"
	"github.com/whimxiqal/journey-sub005/internal/ports"
)

// PortStore is a ports.Store kept in the index database. Unlike leg records,
// port writes are synchronous.
type PortStore struct {
	db *sql.DB
}

var _ ports.Store = (*PortStore)(nil)

func (s *SQLiteIndex) Ports() *PortStore { return &PortStore{db: s.db} }

func (p *PortStore) Add(ctx context.Context, port model.Port) error {
	if err := ports.Check(port); err != nil {
		return err
	}
	o, d := port.Origin, port.Destination
	_, err := p.db.ExecContext(ctx, `INSERT INTO ports(o_domain,ox,oy,oz,d_domain,dx,dy,dz,mode,cost)
		VALUES(?,?,?,?,?,?,?,?,?,?)
		ON CONFLICT(o_domain,ox,oy,oz,d_domain,dx,dy,dz,mode) DO UPDATE SET cost=excluded.cost`,
		string(o.Domain), o.X, o.Y, o.Z, string(d.Domain), d.X, d.Y, d.Z, port.Mode.String(), port.Cost)
	if err != nil {
		return fmt.Errorf("add port: %w", err)
	}
	return nil
}

func (p *PortStore) Remove(ctx context.Context, k model.PortKey) (bool, error) {
	o, d := k.Origin, k.Destination
	res, err := p.db.ExecContext(ctx, `DELETE FROM ports
		WHERE o_domain=? AND ox=? AND oy=? AND oz=? AND d_domain=? AND dx=? AND dy=? AND dz=? AND mode=?`,
		string(o.Domain), o.X, o.Y, o.Z, string(d.Domain), d.X, d.Y, d.Z, k.Mode.String())
	if err != nil {
		return false, fmt.Errorf("remove port: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (p *PortStore) WithOrigin(ctx context.Context, c model.Cell) ([]model.Port, error) {
	return p.query(ctx, `WHERE o_domain=? AND ox=? AND oy=? AND oz=?`, string(c.Domain), c.X, c.Y, c.Z)
}

func (p *PortStore) WithDestination(ctx context.Context, c model.Cell) ([]model.Port, error) {
	return p.query(ctx, `WHERE d_domain=? AND dx=? AND dy=? AND dz=?`, string(c.Domain), c.X, c.Y, c.Z)
}

func (p *PortStore) All(ctx context.Context, modes model.ModeTypeSet) ([]model.Port, error) {
	all, err := p.query(ctx, "")
	if err != nil || modes.Len() == 0 {
		return all, err
	}
	out := all[:0]
	for _, port := range all {
		if modes.Has(port.Mode) {
			out = append(out, port)
		}
	}
	return out, nil
}

func (p *PortStore) query(ctx context.Context, where string, args ...any) ([]model.Port, error) {
	rows, err := p.db.QueryContext(ctx, `SELECT o_domain,ox,oy,oz,d_domain,dx,dy,dz,mode,cost FROM ports `+where+` ORDER BY seq`, args...)
	if err != nil {
		return nil, fmt.Errorf("query ports: %w", err)
	}
	defer rows.Close()
	var out []model.Port
	for rows.Next() {
		var (
			port       model.Port
			od, dd, mo string
		)
		if err := rows.Scan(&od, &port.Origin.X, &port.Origin.Y, &port.Origin.Z,
			&dd, &port.Destination.X, &port.Destination.Y, &port.Destination.Z, &mo, &port.Cost); err != nil {
			return nil, err
		}
		port.Origin.Domain = model.DomainID(od)
		port.Destination.Domain = model.DomainID(dd)
		if port.Mode, err = model.ParseModeType(mo); err != nil {
			return nil, err
		}
		out = append(out, port)
	}
	return out, rows.Err()
}
