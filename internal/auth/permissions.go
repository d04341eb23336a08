package auth

import "strings"

// Permission names follow the resource.action convention. The catalog is
// closed: it is defined here, seeded into the database, and never extended
// at runtime.
const (
	PermUsersView        = "users.view"
	PermUsersCreate      = "users.create"
	PermUsersEdit        = "users.edit"
	PermUsersDelete      = "users.delete"
	PermUsersManageRoles = "users.manage_roles"

	PermTenantsView   = "tenants.view"
	PermTenantsEdit   = "tenants.edit"
	PermTenantsManage = "tenants.manage"

	PermStoresView        = "stores.view"
	PermStoresCreate      = "stores.create"
	PermStoresEdit        = "stores.edit"
	PermStoresDelete      = "stores.delete"
	PermStoresManageUsers = "stores.manage_users"

	PermRolesView       = "roles.view"
	PermRolesCreate     = "roles.create"
	PermRolesEdit       = "roles.edit"
	PermRolesDelete     = "roles.delete"
	PermPermissionsView = "permissions.view"

	PermProductsView            = "products.view"
	PermProductsCreate          = "products.create"
	PermProductsEdit            = "products.edit"
	PermProductsDelete          = "products.delete"
	PermProductsManagePricing   = "products.manage_pricing"
	PermProductsManageInventory = "products.manage_inventory"

	PermOrdersView   = "orders.view"
	PermOrdersCreate = "orders.create"
	PermOrdersEdit   = "orders.edit"
	PermOrdersCancel = "orders.cancel"
	PermOrdersRefund = "orders.refund"

	PermInvoicesView   = "invoices.view"
	PermInvoicesCreate = "invoices.create"
	PermInvoicesEdit   = "invoices.edit"
	PermInvoicesDelete = "invoices.delete"
	PermInvoicesSend   = "invoices.send"

	PermPaymentsView    = "payments.view"
	PermPaymentsProcess = "payments.process"
	PermPaymentsRefund  = "payments.refund"

	PermReportsView   = "reports.view"
	PermReportsExport = "reports.export"
	PermAnalyticsView = "analytics.view"

	PermSettingsView = "settings.view"
	PermSettingsEdit = "settings.edit"

	PermSubscriptionView   = "subscription.view"
	PermSubscriptionManage = "subscription.manage"
	PermBillingView        = "billing.view"
	PermBillingManage      = "billing.manage"

	PermNotificationsView   = "notifications.view"
	PermNotificationsManage = "notifications.manage"
)

// PermissionDef describes one catalog entry for seeding and listing.
type PermissionDef struct {
	Name        string `json:"name"`
	Resource    string `json:"resource"`
	Action      string `json:"action"`
	Description string `json:"description"`
}

var catalog = []PermissionDef{
	{PermUsersView, "users", "view", "View user list and user details"},
	{PermUsersCreate, "users", "create", "Invite or create new users in the tenant"},
	{PermUsersEdit, "users", "edit", "Edit user details and profile"},
	{PermUsersDelete, "users", "delete", "Deactivate or remove users from the tenant"},
	{PermUsersManageRoles, "users", "manage_roles", "Assign or revoke roles for users"},

	{PermTenantsView, "tenants", "view", "View tenant settings and information"},
	{PermTenantsEdit, "tenants", "edit", "Edit tenant settings and information"},
	{PermTenantsManage, "tenants", "manage", "Full tenant management including billing and subscription"},

	{PermStoresView, "stores", "view", "View store list and store details"},
	{PermStoresCreate, "stores", "create", "Create new stores"},
	{PermStoresEdit, "stores", "edit", "Edit store details and settings"},
	{PermStoresDelete, "stores", "delete", "Delete or deactivate stores"},
	{PermStoresManageUsers, "stores", "manage_users", "Assign or remove users from stores"},

	{PermRolesView, "roles", "view", "View roles and their assigned permissions"},
	{PermRolesCreate, "roles", "create", "Create new custom roles"},
	{PermRolesEdit, "roles", "edit", "Edit role details and permissions"},
	{PermRolesDelete, "roles", "delete", "Delete custom roles"},
	{PermPermissionsView, "permissions", "view", "View available permissions in the system"},

	{PermProductsView, "products", "view", "View product catalog and product details"},
	{PermProductsCreate, "products", "create", "Create new products"},
	{PermProductsEdit, "products", "edit", "Edit product details"},
	{PermProductsDelete, "products", "delete", "Delete products from catalog"},
	{PermProductsManagePricing, "products", "manage_pricing", "Manage product pricing and discounts"},
	{PermProductsManageInventory, "products", "manage_inventory", "Manage product stock and inventory levels"},

	{PermOrdersView, "orders", "view", "View order list and order details"},
	{PermOrdersCreate, "orders", "create", "Create new orders"},
	{PermOrdersEdit, "orders", "edit", "Edit order details"},
	{PermOrdersCancel, "orders", "cancel", "Cancel orders"},
	{PermOrdersRefund, "orders", "refund", "Process order refunds"},

	{PermInvoicesView, "invoices", "view", "View invoice list and details"},
	{PermInvoicesCreate, "invoices", "create", "Create new invoices"},
	{PermInvoicesEdit, "invoices", "edit", "Edit invoice details"},
	{PermInvoicesDelete, "invoices", "delete", "Delete draft invoices"},
	{PermInvoicesSend, "invoices", "send", "Send invoices to customers"},

	{PermPaymentsView, "payments", "view", "View payment records and history"},
	{PermPaymentsProcess, "payments", "process", "Process customer payments"},
	{PermPaymentsRefund, "payments", "refund", "Process payment refunds"},

	{PermReportsView, "reports", "view", "View business reports"},
	{PermReportsExport, "reports", "export", "Export report data"},
	{PermAnalyticsView, "analytics", "view", "View analytics dashboards"},

	{PermSettingsView, "settings", "view", "View system settings"},
	{PermSettingsEdit, "settings", "edit", "Edit system settings"},

	{PermSubscriptionView, "subscription", "view", "View subscription plan and status"},
	{PermSubscriptionManage, "subscription", "manage", "Manage subscription plan changes"},
	{PermBillingView, "billing", "view", "View billing history and invoices"},
	{PermBillingManage, "billing", "manage", "Manage billing settings and payment methods"},

	{PermNotificationsView, "notifications", "view", "View notifications"},
	{PermNotificationsManage, "notifications", "manage", "Manage notification preferences"},
}

// Catalog returns a copy of the full permission catalog.
func Catalog() []PermissionDef {
	out := make([]PermissionDef, len(catalog))
	copy(out, catalog)
	return out
}

// KnownPermission reports whether name belongs to the catalog.
func KnownPermission(name string) bool {
	for _, p := range catalog {
		if p.Name == name {
			return true
		}
	}
	return false
}

// SplitPermission breaks "resource.action" into its two parts.
func SplitPermission(name string) (resource, action string) {
	idx := strings.Index(name, ".")
	if idx < 0 {
		return name, ""
	}
	return name[:idx], name[idx+1:]
}

// RoleDef describes a role seeded for every new tenant.
type RoleDef struct {
	Name        string
	Description string
	System      bool
	Permissions []string
}

// DefaultRoles returns the roles created when a tenant is registered.
// Owner gets the entire catalog and is the role assigned to the registrant.
func DefaultRoles() []RoleDef {
	all := make([]string, 0, len(catalog))
	for _, p := range catalog {
		all = append(all, p.Name)
	}
	return []RoleDef{
		{
			Name:        "Owner",
			Description: "Full access to all tenant resources. Cannot be deleted.",
			System:      true,
			Permissions: all,
		},
		{
			Name:        "Admin",
			Description: "Administrative access to manage users, stores, and settings.",
			System:      true,
			Permissions: []string{
				PermUsersView, PermUsersCreate, PermUsersEdit, PermUsersDelete, PermUsersManageRoles,
				PermStoresView, PermStoresCreate, PermStoresEdit, PermStoresDelete, PermStoresManageUsers,
				PermRolesView, PermRolesCreate, PermRolesEdit, PermRolesDelete, PermPermissionsView,
				PermTenantsView, PermTenantsEdit,
				PermSettingsView, PermSettingsEdit,
				PermReportsView, PermReportsExport, PermAnalyticsView,
			},
		},
		{
			Name:        "Manager",
			Description: "Store management access with user and product management.",
			System:      true,
			Permissions: []string{
				PermUsersView,
				PermStoresView, PermStoresEdit, PermStoresManageUsers,
				PermProductsView, PermProductsCreate, PermProductsEdit, PermProductsDelete,
				PermProductsManagePricing, PermProductsManageInventory,
				PermOrdersView, PermOrdersCreate, PermOrdersEdit, PermOrdersCancel,
				PermInvoicesView, PermInvoicesCreate, PermInvoicesEdit, PermInvoicesSend,
				PermPaymentsView, PermPaymentsProcess,
				PermReportsView,
			},
		},
		{
			Name:        "Cashier",
			Description: "Point of sale operations: orders, payments, and basic product view.",
			System:      true,
			Permissions: []string{
				PermProductsView,
				PermOrdersView, PermOrdersCreate,
				PermInvoicesView, PermInvoicesCreate,
				PermPaymentsView, PermPaymentsProcess,
			},
		},
		{
			Name:        "Viewer",
			Description: "Read-only access to view data without modification rights.",
			System:      true,
			Permissions: []string{
				PermUsersView, PermStoresView, PermProductsView, PermOrdersView,
				PermInvoicesView, PermPaymentsView, PermReportsView,
			},
		},
	}
}
