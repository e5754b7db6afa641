package registry

import "ecomstaging/internal/schema"

func text(name string) schema.Column    { return schema.Column{Name: name, Type: schema.Text} }
func integer(name string) schema.Column { return schema.Column{Name: name, Type: schema.Integer} }
func decimal(name string) schema.Column { return schema.Column{Name: name, Type: schema.Decimal} }
func stamp(name string) schema.Column   { return schema.Column{Name: name, Type: schema.Timestamp} }

// OlistDatasets is the Brazilian e-commerce (Olist) catalog in load order.
var OlistDatasets = []DatasetSpec{
	{
		SourceFile:  "olist_customers_dataset.csv",
		TargetTable: "stg_customers",
		Columns: []schema.Column{
			text("customer_id"),
			text("customer_unique_id"),
			text("customer_zip_code_prefix"),
			text("customer_city"),
			text("customer_state"),
		},
	},
	{
		SourceFile:  "olist_geolocation_dataset.csv",
		TargetTable: "stg_geolocation",
		Columns: []schema.Column{
			text("geolocation_zip_code_prefix"),
			decimal("geolocation_lat"),
			decimal("geolocation_lng"),
			text("geolocation_city"),
			text("geolocation_state"),
		},
	},
	{
		SourceFile:  "olist_order_items_dataset.csv",
		TargetTable: "stg_order_items",
		Columns: []schema.Column{
			text("order_id"),
			integer("order_item_id"),
			text("product_id"),
			text("seller_id"),
			stamp("shipping_limit_date"),
			decimal("price"),
			decimal("freight_value"),
		},
		DateColumns: []string{"shipping_limit_date"},
	},
	{
		SourceFile:  "olist_order_payments_dataset.csv",
		TargetTable: "stg_order_payments",
		Columns: []schema.Column{
			text("order_id"),
			integer("payment_sequential"),
			text("payment_type"),
			integer("payment_installments"),
			decimal("payment_value"),
		},
	},
	{
		SourceFile:  "olist_order_reviews_dataset.csv",
		TargetTable: "stg_order_reviews",
		Columns: []schema.Column{
			text("review_id"),
			text("order_id"),
			integer("review_score"),
			text("review_comment_title"),
			text("review_comment_message"),
			stamp("review_creation_date"),
			stamp("review_answer_timestamp"),
		},
		DateColumns: []string{"review_creation_date", "review_answer_timestamp"},
	},
	{
		SourceFile:  "olist_orders_dataset.csv",
		TargetTable: "stg_orders",
		Columns: []schema.Column{
			text("order_id"),
			text("customer_id"),
			text("order_status"),
			stamp("order_purchase_timestamp"),
			stamp("order_approved_at"),
			stamp("order_delivered_carrier_date"),
			stamp("order_delivered_customer_date"),
			stamp("order_estimated_delivery_date"),
		},
		DateColumns: []string{
			"order_purchase_timestamp",
			"order_approved_at",
			"order_delivered_carrier_date",
			"order_delivered_customer_date",
			"order_estimated_delivery_date",
		},
	},
	{
		SourceFile:  "olist_products_dataset.csv",
		TargetTable: "stg_products",
		Columns: []schema.Column{
			text("product_id"),
			text("product_category_name"),
			// The published file misspells "length" in two headers.
			{Name: "product_name_length", Type: schema.Integer, Aliases: []string{"product_name_lenght"}},
			{Name: "product_description_length", Type: schema.Integer, Aliases: []string{"product_description_lenght"}},
			integer("product_photos_qty"),
			integer("product_weight_g"),
			integer("product_length_cm"),
			integer("product_height_cm"),
			integer("product_width_cm"),
		},
	},
	{
		SourceFile:  "olist_sellers_dataset.csv",
		TargetTable: "stg_sellers",
		Columns: []schema.Column{
			text("seller_id"),
			text("seller_zip_code_prefix"),
			text("seller_city"),
			text("seller_state"),
		},
	},
	{
		SourceFile:  "product_category_name_translation.csv",
		TargetTable: "stg_product_category_translations",
		Columns: []schema.Column{
			text("product_category_name"),
			text("product_category_name_english"),
		},
	},
}

// Default returns the validated Olist registry.
func Default() *Registry { return MustNew(OlistDatasets...) }
