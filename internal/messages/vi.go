package messages

// ─── Toast ───────────────────────────────────────────────────────────────────

const (
	NewNotificationTitle = "Bạn có thông báo mới"
	NewNotificationBody  = "Bạn vừa nhận được một thông báo mới."
	FromActorBody        = "%s vừa gửi cho bạn một thông báo."
	UntitledNotification = "(Không có tiêu đề)"
)

// ─── Connection status ───────────────────────────────────────────────────────

const (
	StatusIdle         = "Không hoạt động"
	StatusConnecting   = "Đang kết nối..."
	StatusConnected    = "Đã kết nối (%s)"
	StatusDisconnected = "Mất kết nối"
	StatusBackoff      = "Thử kết nối lại sau %s (lần %d)"
	StatusPolling      = "Đang cập nhật định kỳ"
)

// ─── Feed ────────────────────────────────────────────────────────────────────

const (
	UnreadBadge       = "%d chưa đọc"
	UnreadBadgeMany   = "99+ chưa đọc"
	EmptyFeed         = "Không có thông báo nào"
	SignedOut         = "Bạn chưa đăng nhập"
	MarkedRead        = "Đã đánh dấu là đã đọc"
	MarkedAllRead     = "Đã đánh dấu tất cả là đã đọc"
	Deleted           = "Đã xóa thông báo"
	Reloaded          = "Đã tải lại danh sách thông báo"
	KeyHelpMarkRead   = "đánh dấu đã đọc"
	KeyHelpMarkAll    = "đọc tất cả"
	KeyHelpReload     = "tải lại"
	KeyHelpDelete     = "xóa"
	KeyHelpQuit       = "thoát"
	KeyHelpNavigation = "di chuyển"
)

// ─── BPM ─────────────────────────────────────────────────────────────────────

const (
	TaskAssignedTitle = "Bạn có nhiệm vụ mới"
	TaskAssignedBody  = "Bạn được giao nhiệm vụ '%s' trong quy trình '%s'."

	TaskCompletedTitle = "Nhiệm vụ hoàn thành"
	TaskCompletedBody  = "Nhiệm vụ '%s' đã được hoàn thành."

	ApprovalRequiredTitle = "Yêu cầu phê duyệt"
	ApprovalRequiredBody  = "Bạn cần phê duyệt '%s' trong quy trình '%s'."
)

// ─── CRM ─────────────────────────────────────────────────────────────────────

const (
	LeadStatusChangedTitle = "Trạng thái lead thay đổi"
	LeadStatusChangedBody  = "Trạng thái của lead '%s' đã được cập nhật."

	DealUpdatedTitle = "Deal đã được cập nhật"
	DealUpdatedBody  = "Deal '%s' vừa được cập nhật."
)

// ─── IAM ─────────────────────────────────────────────────────────────────────

const (
	LoginNewDeviceTitle = "Đăng nhập từ thiết bị mới"
	LoginNewDeviceBody  = "Tài khoản của bạn vừa được truy cập từ thiết bị mới (IP: %s). Nếu không phải bạn, hãy đổi mật khẩu ngay."

	PasswordChangedTitle = "Mật khẩu đã thay đổi"
	PasswordChangedBody  = "Mật khẩu tài khoản của bạn vừa được đổi. Hãy liên hệ quản trị viên nếu bạn không thực hiện thao tác này."
)
