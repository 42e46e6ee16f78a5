package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"fashion_shop/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type mongoOrderRepository struct {
	collection *mongo.Collection
}

func NewMongoOrderRepository(db *mongo.Database) OrderRepository {
	return &mongoOrderRepository{
		collection: db.Collection("orders"),
	}
}

func (m *mongoOrderRepository) Create(ctx context.Context, order *model.Order) error {
	if _, err := m.collection.InsertOne(ctx, order); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrDuplicateKey
		}
		return fmt.Errorf("failed to create order: %w", err)
	}
	return nil
}

func (m *mongoOrderRepository) FindOne(ctx context.Context, lookup OrderLookup) (*model.Order, error) {
	filter := bson.M{}
	switch {
	case lookup.ID != "":
		filter["_id"] = lookup.ID
	case lookup.OrderNumber != "":
		filter["order_number"] = lookup.OrderNumber
	case lookup.PayOSOrderCode != nil:
		filter["payment_info.payos_order_code"] = *lookup.PayOSOrderCode
	default:
		return nil, ErrNotFound
	}
	if lookup.UserID != "" {
		filter["user_id"] = lookup.UserID
	}

	var order model.Order
	if err := m.collection.FindOne(ctx, filter).Decode(&order); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get order: %w", err)
	}
	return &order, nil
}

func (m *mongoOrderRepository) UpdatePaymentInfo(ctx context.Context, orderID string, patch model.PaymentInfoPatch, guard PaymentGuard) (*model.Order, error) {
	set := bson.M{"updated_at": time.Now()}
	if patch.Status != nil {
		set["payment_info.status"] = string(*patch.Status)
	}
	if patch.PayOSOrderCode != nil {
		set["payment_info.payos_order_code"] = *patch.PayOSOrderCode
	}
	if patch.PaymentLinkID != nil {
		set["payment_info.payment_link_id"] = *patch.PaymentLinkID
	}
	if patch.CheckoutURL != nil {
		set["payment_info.checkout_url"] = *patch.CheckoutURL
	}
	if patch.TransactionID != nil {
		set["payment_info.transaction_id"] = *patch.TransactionID
	}
	if patch.PaidAt != nil {
		set["payment_info.paid_at"] = *patch.PaidAt
	}

	filter := bson.M{"_id": orderID}
	if len(guard.UnlessStatus) > 0 {
		filter["payment_info.status"] = bson.M{"$nin": paymentStatusStrings(guard.UnlessStatus)}
	}
	if guard.RequireNoOrderCode {
		filter["payment_info.payos_order_code"] = bson.M{"$exists": false}
	}

	return m.findOneAndSet(ctx, orderID, filter, set)
}

func (m *mongoOrderRepository) UpdateStatus(ctx context.Context, orderID string, update StatusUpdate) (*model.Order, error) {
	set := bson.M{
		"status":     string(update.Status),
		"updated_at": time.Now(),
	}
	if update.TrackingNumber != nil {
		set["tracking_number"] = *update.TrackingNumber
	}
	if update.EstimatedDeliveryDate != nil {
		set["estimated_delivery_date"] = *update.EstimatedDeliveryDate
	}
	if update.CancellationReason != nil {
		set["cancellation_reason"] = *update.CancellationReason
	}
	if update.CancelledAt != nil {
		set["cancelled_at"] = *update.CancelledAt
	}

	filter := bson.M{"_id": orderID}
	if len(update.FromStatuses) > 0 {
		filter["status"] = bson.M{"$in": orderStatusStrings(update.FromStatuses)}
	}

	return m.findOneAndSet(ctx, orderID, filter, set)
}

func (m *mongoOrderRepository) findOneAndSet(ctx context.Context, orderID string, filter, set bson.M) (*model.Order, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var order model.Order
	err := m.collection.FindOneAndUpdate(ctx, filter, bson.M{"$set": set}, opts).Decode(&order)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, m.missOrConflict(ctx, orderID)
		}
		if mongo.IsDuplicateKeyError(err) {
			return nil, ErrDuplicateKey
		}
		return nil, fmt.Errorf("failed to update order: %w", err)
	}
	return &order, nil
}

func (m *mongoOrderRepository) Count(ctx context.Context, filter OrderFilter) (int64, error) {
	total, err := m.collection.CountDocuments(ctx, mongoOrderFilter(filter))
	if err != nil {
		return 0, fmt.Errorf("failed to count orders: %w", err)
	}
	return total, nil
}

func (m *mongoOrderRepository) List(ctx context.Context, filter OrderFilter) ([]model.Order, error) {
	direction := 1
	if filter.SortDesc {
		direction = -1
	}

	opts := options.Find().SetSort(bson.D{
		{Key: sortColumn(filter), Value: direction},
		{Key: "_id", Value: 1},
	})
	if filter.Offset > 0 {
		opts.SetSkip(int64(filter.Offset))
	}
	if filter.Limit > 0 {
		opts.SetLimit(int64(filter.Limit))
	}

	cursor, err := m.collection.Find(ctx, mongoOrderFilter(filter), opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	defer cursor.Close(ctx)

	orders := []model.Order{}
	if err := cursor.All(ctx, &orders); err != nil {
		return nil, fmt.Errorf("failed to decode orders: %w", err)
	}
	return orders, nil
}

func (m *mongoOrderRepository) Stats(ctx context.Context, userID string) (map[model.OrderStatus]StatusTotal, error) {
	pipeline := mongo.Pipeline{}
	if userID != "" {
		pipeline = append(pipeline, bson.D{{Key: "$match", Value: bson.M{"user_id": userID}}})
	}
	pipeline = append(pipeline, bson.D{{Key: "$group", Value: bson.M{
		"_id":    "$status",
		"count":  bson.M{"$sum": 1},
		"amount": bson.M{"$sum": "$total_amount"},
	}}})

	cursor, err := m.collection.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate orders: %w", err)
	}
	defer cursor.Close(ctx)

	var rows []struct {
		Status string  `bson:"_id"`
		Count  int64   `bson:"count"`
		Amount float64 `bson:"amount"`
	}
	if err := cursor.All(ctx, &rows); err != nil {
		return nil, fmt.Errorf("failed to decode order stats: %w", err)
	}

	totals := make(map[model.OrderStatus]StatusTotal, len(rows))
	for _, row := range rows {
		totals[model.OrderStatus(row.Status)] = StatusTotal{Count: row.Count, Amount: row.Amount}
	}
	return totals, nil
}

func (m *mongoOrderRepository) missOrConflict(ctx context.Context, orderID string) error {
	n, err := m.collection.CountDocuments(ctx, bson.M{"_id": orderID})
	if err != nil {
		return fmt.Errorf("failed to check order: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return ErrConflict
}

func (m *mongoOrderRepository) CreateIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "order_number", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "payment_info.payos_order_code", Value: 1}},
			Options: options.Index().SetUnique(true).SetSparse(true),
		},
		{
			Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "created_at", Value: -1}},
		},
		{
			Keys: bson.D{{Key: "status", Value: 1}},
		},
		{
			Keys: bson.D{{Key: "payment_info.status", Value: 1}, {Key: "updated_at", Value: 1}},
		},
	}

	if _, err := m.collection.Indexes().CreateMany(ctx, indexes); err != nil {
		return fmt.Errorf("failed to create order indexes: %w", err)
	}
	return nil
}

func mongoOrderFilter(filter OrderFilter) bson.M {
	f := bson.M{}
	if filter.UserID != "" {
		f["user_id"] = filter.UserID
	}
	if filter.Status != "" {
		f["status"] = string(filter.Status)
	}
	if filter.PaymentMethod != "" {
		f["payment_info.method"] = string(filter.PaymentMethod)
	}
	if filter.PaymentStatus != "" {
		f["payment_info.status"] = string(filter.PaymentStatus)
	}

	created := bson.M{}
	if filter.CreatedFrom != nil {
		created["$gte"] = *filter.CreatedFrom
	}
	if filter.CreatedTo != nil {
		created["$lt"] = *filter.CreatedTo
	}
	if filter.CreatedBefore != nil {
		if to, ok := created["$lt"].(time.Time); !ok || filter.CreatedBefore.Before(to) {
			created["$lt"] = *filter.CreatedBefore
		}
	}
	if len(created) > 0 {
		f["created_at"] = created
	}

	if filter.UpdatedBefore != nil {
		f["updated_at"] = bson.M{"$lt": *filter.UpdatedBefore}
	}
	if filter.NoOrderCode {
		f["payment_info.payos_order_code"] = bson.M{"$exists": false}
	}
	return f
}
