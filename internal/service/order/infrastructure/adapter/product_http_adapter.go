package adapter

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"shopflow/internal/pkg/httpclient"
	"shopflow/internal/service/order/domain/port"
)

const ProductService = "product-service"

type productResponse struct {
	ID            int64            `json:"id"`
	Name          string           `json:"name"`
	SKU           string           `json:"sku"`
	Price         decimal.Decimal  `json:"price"`
	DiscountPrice *decimal.Decimal `json:"discountPrice"`
	Images        []struct {
		ImageURL  string `json:"imageUrl"`
		IsPrimary bool   `json:"isPrimary"`
	} `json:"images"`
}

// ProductHTTPAdapter 实现 port.ProductCatalog
type ProductHTTPAdapter struct {
	client   *httpclient.Client
	resolver httpclient.Resolver
	service  string
}

func NewProductHTTPAdapter(client *httpclient.Client, resolver httpclient.Resolver, service string) *ProductHTTPAdapter {
	if service == "" {
		service = ProductService
	}
	return &ProductHTTPAdapter{client: client, resolver: resolver, service: service}
}

func (a *ProductHTTPAdapter) GetProduct(ctx context.Context, productID int64) (*port.Product, error) {
	base, err := a.resolver.Resolve(ctx, a.service)
	if err != nil {
		return nil, errors.Wrapf(err, "resolve %s", a.service)
	}
	var resp productResponse
	if err := a.client.DoJSON(ctx, http.MethodGet, base+productPath(productID), nil, nil, &resp); err != nil {
		return nil, errors.Wrapf(err, "get product %d", productID)
	}
	p := &port.Product{ID: resp.ID, Name: resp.Name, SKU: resp.SKU, Price: resp.Price}
	if resp.DiscountPrice != nil {
		p.DiscountPrice = *resp.DiscountPrice
	}
	for _, img := range resp.Images {
		p.Images = append(p.Images, port.ProductImage{URL: img.ImageURL, IsPrimary: img.IsPrimary})
	}
	return p, nil
}

func productPath(productID int64) string {
	return "/products/" + url.PathEscape(strconv.FormatInt(productID, 10))
}
