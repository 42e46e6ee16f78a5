package constants

const (
	ROLE_ADMIN    = "admin"
	ROLE_CUSTOMER = "customer"
)

const (
	ERROR_INPUT                = "Invalid input"
	ERROR_INTERNAL_ERROR       = "Internal server error"
	ERROR_PARSE_DATA_TO_LOCALS = "Failed to read request data"
	ERROR_UNAUTHORIZED         = "Please log in"
	NOT_ADMIN                  = "Admin permission required"

	ORDER_NOT_FOUND            = "Order not found"
	PRODUCT_NOT_FOUND          = "Product not found"
	ORDER_NOT_CANCELLABLE      = "Order cannot be cancelled"
	ORDER_NOT_PAYABLE          = "Order is not payable"
	PAYMENT_ALREADY_COMPLETED  = "Payment already completed"
	PAYMENT_METHOD_UNSUPPORTED = "Unsupported payment method"
	PAYMENT_STATUS_INVALID     = "Invalid payment status"
	ORDER_CODE_INVALID         = "Invalid order code"
	ORDER_STATUS_INVALID       = "Invalid order status"
	ORDER_STATUS_TRANSITION    = "Order status transition not allowed"
	PAYMENT_FINALIZED          = "Payment status is already final"
	PAYMENT_ORDER_INVALID      = "Order cannot be paid online: it needs items and a positive total"

	WEBHOOK_INVALID_SIGNATURE = "Invalid webhook signature"
	WEBHOOK_ORDER_NOT_FOUND   = "Order not found for webhook"
	WEBHOOK_OK                = "Ok"

	PAYMENT_PROVIDER_UNAVAILABLE = "Payment provider is unavailable, please try again"
	PAYMENT_PROVIDER_FAILED      = "Payment provider rejected the request"
)
