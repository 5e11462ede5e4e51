// CLAUDE:SUMMARY Offer CRUD with derived net price recomputed on every write.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// computeNetPrice derives the net price from an offer's inputs, clamped at 0.
// It is recomputed on every write; the column is never independently mutable.
func computeNetPrice(o *Offer) float64 {
	net := o.ListPrice - o.ImmediateDiscount - o.CouponValue - o.RebateValue - o.LoyaltyDiscount
	if net < 0 {
		net = 0
	}
	return net
}

// InsertOffer adds a price snapshot. NetPrice is derived before the write.
func (s *Store) InsertOffer(ctx context.Context, o *Offer) error {
	if o.CapturedAt == 0 {
		o.CapturedAt = time.Now().UnixMilli()
	}
	o.NetPrice = computeNetPrice(o)
	_, err := s.DB.ExecContext(ctx,
		`INSERT INTO offers (id, campaign_id, product_code, merchant, list_price,
		immediate_discount, coupon_value, rebate_value, loyalty_discount, net_price,
		source_url, captured_at, active)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		o.ID, o.CampaignID, o.ProductCode, o.Merchant, o.ListPrice,
		o.ImmediateDiscount, o.CouponValue, o.RebateValue, o.LoyaltyDiscount, o.NetPrice,
		o.SourceURL, o.CapturedAt, o.Active,
	)
	return err
}

// UpdateOffer updates an offer's price inputs and recomputes the net price.
func (s *Store) UpdateOffer(ctx context.Context, o *Offer) error {
	o.NetPrice = computeNetPrice(o)
	_, err := s.DB.ExecContext(ctx,
		`UPDATE offers SET merchant=?, list_price=?, immediate_discount=?,
		coupon_value=?, rebate_value=?, loyalty_discount=?, net_price=?,
		source_url=?, active=?
		WHERE id=?`,
		o.Merchant, o.ListPrice, o.ImmediateDiscount,
		o.CouponValue, o.RebateValue, o.LoyaltyDiscount, o.NetPrice,
		o.SourceURL, o.Active, o.ID,
	)
	return err
}

// GetOffer retrieves an offer by ID.
func (s *Store) GetOffer(ctx context.Context, id string) (*Offer, error) {
	row := s.DB.QueryRowContext(ctx, offerSelect+` WHERE id = ?`, id)
	return scanOffer(row)
}

// ListActiveOffers returns all active offers, oldest capture first.
func (s *Store) ListActiveOffers(ctx context.Context) ([]*Offer, error) {
	rows, err := s.DB.QueryContext(ctx, offerSelect+` WHERE active = 1 ORDER BY captured_at ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []*Offer
	for rows.Next() {
		o, err := scanOfferRows(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, o)
	}
	return result, rows.Err()
}

// DeactivateOffer marks an offer inactive so the collider skips it.
func (s *Store) DeactivateOffer(ctx context.Context, id string) error {
	_, err := s.DB.ExecContext(ctx, `UPDATE offers SET active = 0 WHERE id = ?`, id)
	return err
}

const offerSelect = `SELECT id, campaign_id, product_code, merchant, list_price,
	immediate_discount, coupon_value, rebate_value, loyalty_discount, net_price,
	source_url, captured_at, active
	FROM offers`

func scanOffer(row *sql.Row) (*Offer, error) {
	var o Offer
	var active int
	err := row.Scan(&o.ID, &o.CampaignID, &o.ProductCode, &o.Merchant, &o.ListPrice,
		&o.ImmediateDiscount, &o.CouponValue, &o.RebateValue, &o.LoyaltyDiscount,
		&o.NetPrice, &o.SourceURL, &o.CapturedAt, &active)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("scan offer: %w", err)
	}
	o.Active = active != 0
	return &o, nil
}

func scanOfferRows(rows *sql.Rows) (*Offer, error) {
	var o Offer
	var active int
	err := rows.Scan(&o.ID, &o.CampaignID, &o.ProductCode, &o.Merchant, &o.ListPrice,
		&o.ImmediateDiscount, &o.CouponValue, &o.RebateValue, &o.LoyaltyDiscount,
		&o.NetPrice, &o.SourceURL, &o.CapturedAt, &active)
	if err != nil {
		return nil, fmt.Errorf("scan offer: %w", err)
	}
	o.Active = active != 0
	return &o, nil
}
