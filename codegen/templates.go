package codegen

const moduleTemplate = `{{- define "ports" -}}
   input run,
   input clk,
   input rst,
   output done,
{{- range $i := until .Inputs }}
   input [DATA_W-1:0] in{{ $i }},
{{- end }}
{{- range .Outputs }}
   output [DATA_W-1:0] out{{ .Port }},
{{- end }}
{{- if .ConfigBits }}
   input [{{ sub .ConfigBits 1 }}:0] configdata,
{{- end }}
{{- if .StaticBits }}
   input [{{ sub .StaticBits 1 }}:0] statics,
{{- end }}
{{- if .StateBits }}
   output [{{ sub .StateBits 1 }}:0] statedata,
{{- end }}
{{- if .DelayBits }}
   input [{{ sub .DelayBits 1 }}:0] delays,
{{- end }}
{{- if .MemoryBits }}
   input valid,
   input we,
   input [{{ sub .MemoryBits 1 }}:0] addr,
   input [DATA_W-1:0] wdata,
   output [DATA_W-1:0] rdata,
{{- end }}
   input [DATA_W-1:0] unused
{{- end -}}

{{- define "body" }}
{{- range .Children }}
{{- $c := . }}
{{- range .Outputs }}
wire [DATA_W-1:0] {{ . }};
{{- end }}
{{- if .Done }}
wire done_{{ .Name }};
{{- end }}
{{- if .Memory }}
wire [DATA_W-1:0] rdata_{{ .Name }};
{{- end }}
{{- end }}
{{ range .Children }}
{{- if .Operation }}
{{- if .Registered }}
reg [DATA_W-1:0] {{ .Name }}_reg;
always @(posedge clk) {{ .Name }}_reg <= {{ .Expr }};
assign {{ index .Outputs 0 }} = {{ .Name }}_reg;
{{- else }}
assign {{ index .Outputs 0 }} = {{ .Expr }};
{{- end }}
{{- else }}
{{ .Type }} {{ if .Params }}#({{ .Params }}) {{ end }}{{ .Name }} (
{{- range $i, $in := .Inputs }}
   .in{{ $i }}({{ $in }}),
{{- end }}
{{- range $i, $out := .Outputs }}
   .out{{ $i }}({{ $out }}),
{{- end }}
{{- if .Config }}
   .configdata({{ .Config }}),
{{- end }}
{{- if .Static }}
   .statics({{ .Static }}),
{{- end }}
{{- if .State }}
   .statedata({{ .State }}),
{{- end }}
{{- if .Delay }}
   .delays({{ .Delay }}),
{{- end }}
{{- if .Memory }}
   .valid(valid && {{ .MemorySelect }}),
   .we(we),
   .addr(addr[{{ sub .MemoryBits 1 }}:0]),
   .wdata(wdata),
   .rdata(rdata_{{ .Name }}),
{{- end }}
   .done({{ if .Done }}done_{{ .Name }}{{ end }}),
   .run(run),
   .clk(clk),
   .rst(rst)
);
{{- end }}
{{ end }}
{{- range .Outputs }}
assign out{{ .Port }} = {{ .Expr }};
{{- end }}
{{- if .MemoryReads }}
assign rdata = {{ join " | " .MemoryReads }};
{{- end }}
assign done = {{ if .Done }}{{ join " & " .Done }}{{ else }}1'b1{{ end }};
{{- end -}}

{{- define "module" -}}
` + "`" + `timescale 1ns / 1ps
` + "`" + `include "versat_defs.vh"

// {{ .Name }}{{ if .Iterative }}: repeats {{ .Iterative.Unit }} for {{ .Iterative.Latency }} cycles{{ end }}
module {{ .Name }} #(parameter DATA_W = 32) (
{{ template "ports" . }}
);
{{ template "body" . }}
endmodule
{{ end -}}
`

const topTemplate = `{{- define "top" -}}
` + "`" + `timescale 1ns / 1ps
` + "`" + `include "versat_defs.vh"

module versat_instance #(parameter ADDR_W = {{ .Values.AddressSize }}, parameter DATA_W = 32) (
   input valid,
   input we,
   input [ADDR_W-1:0] addr,
   input [DATA_W-1:0] wdata,
   output reg [DATA_W-1:0] rdata,
   output reg ready,
   input clk,
   input rst
);

wire memoryMapped = addr[{{ .Values.DecisionBit }}];
reg run;
wire done;
{{- if .Module.ConfigBits }}
reg [{{ sub .Module.ConfigBits 1 }}:0] configdata;
{{- end }}
{{- if .Module.StaticBits }}
reg [{{ sub .Module.StaticBits 1 }}:0] statics;
{{- end }}
{{- if .Module.StateBits }}
wire [{{ sub .Module.StateBits 1 }}:0] statedata;
{{- end }}
{{- if .Module.DelayBits }}
reg [{{ sub .Module.DelayBits 1 }}:0] delays;
{{- end }}
{{- range .Mapped }}
wire unitSel_{{ .Name }} = memoryMapped{{ if $.Values.UnitSelectBits }} && addr[{{ sub (add $.Values.InUnitBits $.Values.UnitSelectBits) 1 }}:{{ $.Values.InUnitBits }}] == {{ .Index }}{{ end }};
{{- end }}

// control register and configuration writes
always @(posedge clk, posedge rst) begin
   if(rst) begin
      run <= 0;
   end else if(valid && we && !memoryMapped) begin
      case(addr[{{ if .Values.ConfigStateBits }}{{ sub .Values.ConfigStateBits 1 }}{{ else }}0{{ end }}:0])
      0: run <= wdata[0];
{{- range .Configs }}
      {{ .Index }}: {{ .Bus }}[{{ .Hi }}:{{ .Lo }}] <= wdata[{{ sub .Hi .Lo }}:0];
{{- end }}
      default: ;
      endcase
   end else begin
      run <= 0;
   end
end

// state reads
always @* begin
   rdata = 0;
   if(memoryMapped) begin
{{- range .Mapped }}
      if(unitSel_{{ .Name }}) rdata = rdata_{{ .Name }};
{{- end }}
   end else begin
      case(addr[{{ if .Values.ConfigStateBits }}{{ sub .Values.ConfigStateBits 1 }}{{ else }}0{{ end }}:0])
      0: rdata = {31'h0, done};
{{- range .States }}
      {{ .Index }}: rdata = statedata[{{ .Hi }}:{{ .Lo }}];
{{- end }}
      default: ;
      endcase
   end
end

always @(posedge clk) ready <= valid;
{{ template "body" .Module }}
endmodule
{{ end -}}
`

const headerTemplate = `{{- define "header" -}}
` + "`" + `define NUMBER_UNITS {{ .NumberUnits }}
` + "`" + `define CONFIG_W {{ .ConfigBusBits }}
` + "`" + `define STATE_W {{ .StateBusBits }}
` + "`" + `define MAPPED_UNITS {{ len .Mapped }}
` + "`" + `define MAPPED_BIT {{ .DecisionBit }}
` + "`" + `define ADDR_W {{ .AddressSize }}
` + "`" + `define nIO {{ .IOs }}
` + "`" + `define nCONFIGS {{ .NumConfigurations }}
` + "`" + `define nSTATES {{ .NumStates }}
{{- if .InUnitBits }}
` + "`" + `define MEMORY_MAPPED_BITS {{ .InUnitBits }}
{{- end }}
{{- if .ByteAddressable }}
` + "`" + `define BYTE_ADDRESSABLE
{{- end }}
{{- if .ShadowRegisters }}
` + "`" + `define SHADOW_REGISTERS
{{- end }}
{{ end -}}
`

const dataTemplate = `{{- define "data" -}}
#define VERSAT_CONFIGURATIONS {{ .Configurations }}
#define VERSAT_CONFIG_SIZE {{ len .Values }}

static int versat_config_data[{{ mul .Configurations (len .Values) }}] = {
{{- range $n := until .Configurations }}
   {{ join ", " $.Words }},
{{- end }}
};

static const char* versat_config_names[{{ len .Names }}] = {
{{- range .Names }}
   {{ quote . }},
{{- end }}
};
{{ end -}}
`
