package ledger

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const customersCSV = `customer_id,name,segment,territory,credit_terms
C001,Gourmet Gateway,HO.RE.CA,West,NET15
C002,Snack Shack,Retail,East,PREPAID
`

const ordersCSV = `order_id,customer_id,order_date,sku,qty,price
SO-101,C001,2025-08-20,CAKE-CHOC,3,12.50
SO-130,C002,2025-09-01,JUICE-ORG,10,1.20
`

func TestReadCSV(t *testing.T) {
	l, err := ReadCSV(strings.NewReader(customersCSV), strings.NewReader(ordersCSV))
	require.NoError(t, err)

	assert.Equal(t, []string{"C001", "C002"}, l.CustomerIDs())
	assert.InDelta(t, 37.5, l.TotalSpent("C001"), 1e-9)
	c, ok := l.Customer("C002")
	require.True(t, ok)
	assert.Equal(t, "PREPAID", c.CreditTerms)
}

func TestReadCSV_Errors(t *testing.T) {
	_, err := ReadCSV(strings.NewReader("customer_id,name\nC001,x\n"), strings.NewReader(ordersCSV))
	assert.ErrorContains(t, err, "segment")

	bad := "customer_id,order_id,order_date,sku,qty,price\nC001,SO-1,yesterday,A,1,1.0\n"
	_, err = ReadCSV(strings.NewReader(customersCSV), strings.NewReader(bad))
	assert.ErrorContains(t, err, "row 2")

	_, err = ReadCSV(strings.NewReader(""), strings.NewReader(ordersCSV))
	assert.Error(t, err)
}

func TestCSVSource_Load(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, CustomersFile), []byte(customersCSV), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, OrdersFile), []byte(ordersCSV), 0o600))

	l, err := NewCSVSource(dir).Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, l.OrderCount())

	_, err = NewCSVSource(t.TempDir()).Load(context.Background())
	assert.Error(t, err)
}

type failingSource struct{}

func (failingSource) Name() string { return "failing" }
func (failingSource) Load(context.Context) (*Ledger, error) {
	return nil, errors.New("connection refused")
}

type emptySource struct{}

func (emptySource) Name() string { return "empty" }
func (emptySource) Load(context.Context) (*Ledger, error) {
	return New(nil, nil)
}

func TestLoadOrSample_FallsBack(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	ctx := context.Background()

	sample := Sample().Fingerprint()
	assert.Equal(t, sample, LoadOrSample(ctx, nil, logger).Fingerprint())
	assert.Equal(t, sample, LoadOrSample(ctx, failingSource{}, logger).Fingerprint())
	assert.Equal(t, sample, LoadOrSample(ctx, emptySource{}, logger).Fingerprint())
	assert.Contains(t, buf.String(), "connection refused")
}

func TestLoadOrSample_UsesSource(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, CustomersFile), []byte(customersCSV), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, OrdersFile), []byte(ordersCSV), 0o600))

	l := LoadOrSample(context.Background(), NewCSVSource(dir), slog.New(slog.NewTextHandler(io.Discard, nil)))
	assert.Equal(t, []string{"C001", "C002"}, l.CustomerIDs())
}

type fakeS3 struct {
	objects map[string]string
	keys    []string
}

func (f *fakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.keys = append(f.keys, *in.Key)
	body, ok := f.objects[*in.Key]
	if !ok {
		return nil, errors.New("NoSuchKey")
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(strings.NewReader(body))}, nil
}

func TestS3Source_Load(t *testing.T) {
	fake := &fakeS3{objects: map[string]string{
		"exports/customers.csv": customersCSV,
		"exports/orders.csv":    ordersCSV,
	}}
	src := &S3Source{client: fake, bucket: "sales", prefix: "exports/"}

	l, err := src.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, l.OrderCount())
	assert.Equal(t, []string{"exports/customers.csv", "exports/orders.csv"}, fake.keys)
	assert.Equal(t, "s3://sales/exports/", src.Name())

	missing := &S3Source{client: &fakeS3{}, bucket: "sales"}
	_, err = missing.Load(context.Background())
	assert.ErrorContains(t, err, "customers.csv")
}
