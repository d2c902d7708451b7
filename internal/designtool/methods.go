package designtool

// Plugin method names understood by the Figma plugin.
const (
	MethodGetDocumentStructure     = "getDocumentStructure"
	MethodGetNodeContext           = "getNodeContext"
	MethodGetVariablesFromPluginUI = "getVariablesFromPluginUI"
	MethodGetComponentFromPluginUI = "getComponentFromPluginUI"
	MethodGetLocalStyles           = "getLocalStyles"
	MethodGetLocalComponents       = "getLocalComponents"
	MethodExecuteCodeViaUI         = "executeCodeViaUI"
	MethodCaptureScreenshot        = "captureScreenshot"
	MethodSetInstanceProperties    = "setInstanceProperties"
	MethodUpdateVariable           = "updateVariable"
	MethodCreateVariable           = "createVariable"
	MethodCreateVariableCollection = "createVariableCollection"
	MethodDeleteVariable           = "deleteVariable"
	MethodDeleteVariableCollection = "deleteVariableCollection"
	MethodRenameVariable           = "renameVariable"
	MethodAddMode                  = "addMode"
	MethodRenameMode               = "renameMode"
	MethodRefreshVariables         = "refreshVariables"
	MethodInstantiateComponent     = "instantiateComponent"
	MethodSetNodeDescription       = "setNodeDescription"
	MethodGetConsoleLogs           = "getConsoleLogs"
	MethodClearConsole             = "clearConsole"
	MethodBatchCreateVariables     = "batchCreateVariables"
	MethodBatchUpdateVariables     = "batchUpdateVariables"
	MethodSetupDesignTokens        = "setupDesignTokens"
	MethodArrangeComponentSet      = "arrangeComponentSet"
)
