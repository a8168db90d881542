package mapping

import "github.com/rzpsarthak13/recordshift/internal/core"

// Columns shared by orders and refunds.
var commonPairs = []Pair{
	{Column: "status", Key: "_status"},
	{Column: "currency", Key: "_order_currency"},
	{Column: "total_amount", Key: "_order_total", Style: StyleDecimal, Scale: 2},
	{Column: "tax_amount", Key: "_order_tax", Style: StyleDecimal, Scale: 2},
	{Column: "date_created_gmt", Key: "_date_created"},
	{Column: "date_updated_gmt", Key: "_date_modified"},
	{Column: "parent_order_id", Key: "_parent_id"},
}

var orderPairs = []Pair{
	{Column: "customer_id", Key: "_customer_user"},
	{Column: "billing_email", Key: "_billing_email"},
	{Column: "payment_method", Key: "_payment_method"},
	{Column: "payment_method_title", Key: "_payment_method_title"},
	{Column: "transaction_id", Key: "_transaction_id"},
	{Column: "customer_ip_address", Key: "_customer_ip_address"},
	{Column: "customer_user_agent", Key: "_customer_user_agent"},
	{Column: "customer_note", Key: "_customer_note"},
	{Column: "prices_include_tax", Key: "_prices_include_tax", Style: StyleYesNo},
	{Column: "date_paid_gmt", Key: "_paid_date", Style: StyleUnix},
	{Column: "date_completed_gmt", Key: "_completed_date", Style: StyleUnix},
}

var refundPairs = []Pair{
	{Column: "refund_amount", Key: "_refund_amount", Style: StyleDecimal, Scale: 2},
	{Column: "refunded_by", Key: "_refunded_by"},
	{Column: "refunded_payment", Key: "_refunded_payment"},
	{Column: "refund_reason", Key: "_refund_reason"},
}

var (
	orderMapping  = mustNew(core.KindOrder, concat(commonPairs, orderPairs))
	refundMapping = mustNew(core.KindRefund, concat(commonPairs, refundPairs))
)

func concat(groups ...[]Pair) []Pair {
	var out []Pair
	for _, g := range groups {
		out = append(out, g...)
	}
	return out
}
